package repotest

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/dosacha/simvex-api/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// RunProperties checks isolation and id monotonicity over generated inputs.
// One repository set is shared by all iterations, tenants are made unique per iteration.
func RunProperties(t *testing.T, open Factory, minSuccessful int) {
	ctx := context.Background()
	repos := open(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = minSuccessful
	properties := gopter.NewProperties(parameters)

	var round atomic.Int64
	tenants := func(name string) (string, string) {
		n := round.Add(1)
		return fmt.Sprintf("a%d-%s", n, name), fmt.Sprintf("b%d-%s", n, name)
	}

	properties.Property("memos of one tenant are invisible to another", prop.ForAll(
		func(name, title string, modelID int64) bool {
			owner, other := tenants(name)
			m, err := repos.Memo.Create(ctx, owner, modelID, domain.MemoInput{Title: title})
			if err != nil || m == nil {
				return false
			}
			list, err := repos.Memo.ListByModel(ctx, other, modelID)
			if err != nil || len(list) != 0 {
				return false
			}
			got, err := repos.Memo.Update(ctx, other, m.ID, domain.MemoInput{Title: "x"})
			if err != nil || got != nil {
				return false
			}
			ok, err := repos.Memo.Delete(ctx, other, m.ID)
			if err != nil || ok {
				return false
			}
			own, err := repos.Memo.ListByModel(ctx, owner, modelID)
			return err == nil && len(own) == 1 && own[0].Title == title
		},
		gen.Identifier(),
		gen.AlphaString(),
		gen.Int64Range(1, 1000),
	))

	properties.Property("files of one tenant are invisible to another", prop.ForAll(
		func(name string, payload []byte) bool {
			owner, other := tenants(name)
			n, err := repos.Workflow.CreateNode(ctx, owner, domain.NodeInput{Title: name})
			if err != nil || n == nil {
				return false
			}
			f, err := repos.Workflow.AddFileToNode(ctx, owner, n.ID, domain.FileInput{FileName: name, Buffer: payload})
			if err != nil || f == nil {
				return false
			}
			foreign, err := repos.Workflow.FindFile(ctx, other, f.ID)
			if err != nil || foreign != nil {
				return false
			}
			own, err := repos.Workflow.FindFile(ctx, owner, f.ID)
			return err == nil && own != nil && bytes.Equal(own.Buffer, payload)
		},
		gen.Identifier(),
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("ids increase across tenants in creation order", prop.ForAll(
		func(picks []bool) bool {
			a, b := tenants("seq")
			var last int64
			for _, useA := range picks {
				tenant := b
				if useA {
					tenant = a
				}
				m, err := repos.Memo.Create(ctx, tenant, 1, domain.MemoInput{Title: "m"})
				if err != nil || m == nil || m.ID <= last {
					return false
				}
				last = m.ID
			}
			return true
		},
		gen.SliceOfN(5, gen.Bool()),
	))

	properties.TestingRun(t)
}
