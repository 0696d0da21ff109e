// Package repotest holds the behaviour every repository backend must share.
// Backend packages call RunContract and RunProperties from their own tests.
package repotest

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/dosacha/simvex-api/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty set of repositories for one subtest.
type Factory func(t *testing.T) *domain.Repositories

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

// AllBytes returns every byte value once, used for binary round trips.
func AllBytes() []byte {
	b := make([]byte, 256)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

// RunContract runs the shared repository behaviour against open.
func RunContract(t *testing.T, open Factory) {
	ctx := context.Background()

	t.Run("MemoCreateAndList", func(t *testing.T) {
		repos := open(t)
		m, err := repos.Memo.Create(ctx, "u1", 7, domain.MemoInput{Title: "t", Content: "c"})
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Positive(t, m.ID)

		list, err := repos.Memo.ListByModel(ctx, "u1", 7)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "t", list[0].Title)
		assert.Equal(t, "c", list[0].Content)
		assert.Equal(t, m.ID, list[0].ID)

		other, err := repos.Memo.ListByModel(ctx, "u2", 7)
		require.NoError(t, err)
		assert.NotNil(t, other)
		assert.Empty(t, other)

		otherModel, err := repos.Memo.ListByModel(ctx, "u1", 8)
		require.NoError(t, err)
		assert.Empty(t, otherModel)
	})

	t.Run("MemoInsertionOrder", func(t *testing.T) {
		repos := open(t)
		for _, title := range []string{"a", "b", "c"} {
			_, err := repos.Memo.Create(ctx, "u1", 1, domain.MemoInput{Title: title})
			require.NoError(t, err)
		}
		list, err := repos.Memo.ListByModel(ctx, "u1", 1)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "a", list[0].Title)
		assert.Equal(t, "b", list[1].Title)
		assert.Equal(t, "c", list[2].Title)
	})

	t.Run("MemoUpdateAndDelete", func(t *testing.T) {
		repos := open(t)
		m, err := repos.Memo.Create(ctx, "u1", 7, domain.MemoInput{Title: "t", Content: "c"})
		require.NoError(t, err)

		updated, err := repos.Memo.Update(ctx, "u1", m.ID, domain.MemoInput{Title: "t2", Content: "c2"})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, m.ID, updated.ID)
		assert.Equal(t, "t2", updated.Title)
		assert.Equal(t, "c2", updated.Content)

		list, err := repos.Memo.ListByModel(ctx, "u1", 7)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "t2", list[0].Title)

		missing, err := repos.Memo.Update(ctx, "u1", m.ID+1000, domain.MemoInput{Title: "x"})
		require.NoError(t, err)
		assert.Nil(t, missing)

		ok, err := repos.Memo.Delete(ctx, "u1", m.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repos.Memo.Delete(ctx, "u1", m.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		list, err = repos.Memo.ListByModel(ctx, "u1", 7)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("MemoTenantIsolation", func(t *testing.T) {
		repos := open(t)
		m, err := repos.Memo.Create(ctx, "u1", 7, domain.MemoInput{Title: "mine", Content: "c"})
		require.NoError(t, err)

		got, err := repos.Memo.Update(ctx, "u2", m.ID, domain.MemoInput{Title: "stolen"})
		require.NoError(t, err)
		assert.Nil(t, got)

		ok, err := repos.Memo.Delete(ctx, "u2", m.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		list, err := repos.Memo.ListByModel(ctx, "u1", 7)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "mine", list[0].Title)
	})

	t.Run("MemoReturnsCopies", func(t *testing.T) {
		repos := open(t)
		m, err := repos.Memo.Create(ctx, "u1", 7, domain.MemoInput{Title: "t"})
		require.NoError(t, err)
		m.Title = "changed"

		list, err := repos.Memo.ListByModel(ctx, "u1", 7)
		require.NoError(t, err)
		list[0].Title = "changed again"

		list, err = repos.Memo.ListByModel(ctx, "u1", 7)
		require.NoError(t, err)
		assert.Equal(t, "t", list[0].Title)
	})

	t.Run("MemoIDsMonotonicAcrossTenants", func(t *testing.T) {
		repos := open(t)
		a, err := repos.Memo.Create(ctx, "u1", 1, domain.MemoInput{Title: "a"})
		require.NoError(t, err)
		b, err := repos.Memo.Create(ctx, "u2", 1, domain.MemoInput{Title: "b"})
		require.NoError(t, err)
		c, err := repos.Memo.Create(ctx, "u1", 2, domain.MemoInput{Title: "c"})
		require.NoError(t, err)

		assert.Less(t, a.ID, b.ID)
		assert.Less(t, b.ID, c.ID)

		// deleted ids are never reused
		_, err = repos.Memo.Delete(ctx, "u1", c.ID)
		require.NoError(t, err)
		d, err := repos.Memo.Create(ctx, "u1", 2, domain.MemoInput{Title: "d"})
		require.NoError(t, err)
		assert.Greater(t, d.ID, c.ID)
	})

	t.Run("HistoryAppendAndList", func(t *testing.T) {
		repos := open(t)
		before := time.Now().UTC().Truncate(time.Millisecond)

		item, err := repos.AiHistory.Append(ctx, "u1", 7, domain.AiHistoryInput{Question: "Q1", Answer: "A1"})
		require.NoError(t, err)
		require.NotNil(t, item)
		assert.Equal(t, "Q1", item.Question)
		assert.Equal(t, "A1", item.Answer)

		_, err = repos.AiHistory.Append(ctx, "u1", 7, domain.AiHistoryInput{Question: "Q2", Answer: "A2"})
		require.NoError(t, err)

		list, err := repos.AiHistory.ListByModel(ctx, "u1", 7)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Q1", list[0].Question)
		assert.Equal(t, "Q2", list[1].Question)
		assert.Equal(t, item.Timestamp, list[0].Timestamp)

		ts, err := time.Parse(time.RFC3339Nano, list[0].Timestamp)
		require.NoError(t, err)
		assert.False(t, ts.Before(before), "timestamp %s earlier than %s", ts, before)

		other, err := repos.AiHistory.ListByModel(ctx, "u2", 7)
		require.NoError(t, err)
		assert.NotNil(t, other)
		assert.Empty(t, other)
	})

	t.Run("WorkflowEmptyForUnknownTenant", func(t *testing.T) {
		repos := open(t)
		state, err := repos.Workflow.List(ctx, "nobody")
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.NotNil(t, state.Nodes)
		assert.NotNil(t, state.Connections)
		assert.Empty(t, state.Nodes)
		assert.Empty(t, state.Connections)
	})

	t.Run("NodeCreateAndSparseUpdate", func(t *testing.T) {
		repos := open(t)
		n, err := repos.Workflow.CreateNode(ctx, "u1", domain.NodeInput{Title: "n", Content: "body", X: 1.5, Y: -2})
		require.NoError(t, err)
		require.NotNil(t, n)
		assert.Positive(t, n.ID)
		assert.NotNil(t, n.Files)
		assert.Empty(t, n.Files)

		updated, err := repos.Workflow.UpdateNode(ctx, "u1", n.ID, domain.NodePatch{X: floatPtr(10)})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, "n", updated.Title)
		assert.Equal(t, "body", updated.Content)
		assert.Equal(t, 10.0, updated.X)
		assert.Equal(t, -2.0, updated.Y)

		updated, err = repos.Workflow.UpdateNode(ctx, "u1", n.ID, domain.NodePatch{Title: strPtr("renamed"), Content: strPtr("")})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, "renamed", updated.Title)
		assert.Equal(t, "", updated.Content)
		assert.Equal(t, 10.0, updated.X)

		same, err := repos.Workflow.UpdateNode(ctx, "u1", n.ID, domain.NodePatch{})
		require.NoError(t, err)
		require.NotNil(t, same)
		assert.Equal(t, "renamed", same.Title)

		state, err := repos.Workflow.List(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, state.Nodes, 1)
		assert.Equal(t, "renamed", state.Nodes[0].Title)
		assert.Equal(t, 10.0, state.Nodes[0].X)
		assert.Equal(t, -2.0, state.Nodes[0].Y)

		missing, err := repos.Workflow.UpdateNode(ctx, "u1", n.ID+1000, domain.NodePatch{Title: strPtr("x")})
		require.NoError(t, err)
		assert.Nil(t, missing)

		foreign, err := repos.Workflow.UpdateNode(ctx, "u2", n.ID, domain.NodePatch{Title: strPtr("x")})
		require.NoError(t, err)
		assert.Nil(t, foreign)
	})

	t.Run("ConnectionSelfLoopRejected", func(t *testing.T) {
		repos := open(t)
		n, err := repos.Workflow.CreateNode(ctx, "u1", domain.NodeInput{Title: "n"})
		require.NoError(t, err)

		c, err := repos.Workflow.CreateConnection(ctx, "u1", domain.ConnectionInput{From: n.ID, To: n.ID})
		require.NoError(t, err)
		assert.Nil(t, c)

		// rejected regardless of node existence
		c, err = repos.Workflow.CreateConnection(ctx, "u1", domain.ConnectionInput{From: 9999, To: 9999})
		require.NoError(t, err)
		assert.Nil(t, c)

		state, err := repos.Workflow.List(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, state.Connections)
	})

	t.Run("ConnectionIdempotent", func(t *testing.T) {
		repos := open(t)
		a, err := repos.Workflow.CreateNode(ctx, "u1", domain.NodeInput{Title: "a"})
		require.NoError(t, err)
		b, err := repos.Workflow.CreateNode(ctx, "u1", domain.NodeInput{Title: "b"})
		require.NoError(t, err)

		in := domain.ConnectionInput{From: a.ID, To: b.ID, FromAnchor: "right", ToAnchor: "left"}
		c1, err := repos.Workflow.CreateConnection(ctx, "u1", in)
		require.NoError(t, err)
		require.NotNil(t, c1)
		c2, err := repos.Workflow.CreateConnection(ctx, "u1", in)
		require.NoError(t, err)
		require.NotNil(t, c2)
		assert.Equal(t, c1.ID, c2.ID)

		state, err := repos.Workflow.List(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, state.Connections, 1)
		assert.Equal(t, "right", state.Connections[0].FromAnchor)
		assert.Equal(t, "left", state.Connections[0].ToAnchor)

		// different anchors are a different connection
		c3, err := repos.Workflow.CreateConnection(ctx, "u1", domain.ConnectionInput{From: a.ID, To: b.ID, FromAnchor: "bottom", ToAnchor: "left"})
		require.NoError(t, err)
		require.NotNil(t, c3)
		assert.NotEqual(t, c1.ID, c3.ID)

		id, ok, err := repos.Workflow.FindConnectionIDByPair(ctx, "u1", a.ID, b.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, c1.ID, id)

		// direction matters
		_, ok, err = repos.Workflow.FindConnectionIDByPair(ctx, "u1", b.ID, a.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ConnectionRequiresTenantEndpoints", func(t *testing.T) {
		repos := open(t)
		a, err := repos.Workflow.CreateNode(ctx, "u1", domain.NodeInput{Title: "a"})
		require.NoError(t, err)
		b, err := repos.Workflow.CreateNode(ctx, "u1", domain.NodeInput{Title: "b"})
		require.NoError(t, err)
		x, err := repos.Workflow.CreateNode(ctx, "u2", domain.NodeInput{Title: "x"})
		require.NoError(t, err)

		c, err := repos.Workflow.CreateConnection(ctx, "u1", domain.ConnectionInput{From: a.ID, To: b.ID + 1000})
		require.NoError(t, err)
		assert.Nil(t, c)

		c, err = repos.Workflow.CreateConnection(ctx, "u1", domain.ConnectionInput{From: a.ID, To: x.ID})
		require.NoError(t, err)
		assert.Nil(t, c)

		c, err = repos.Workflow.CreateConnection(ctx, "u2", domain.ConnectionInput{From: a.ID, To: b.ID})
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("ConnectionDelete", func(t *testing.T) {
		repos := open(t)
		a, _ := repos.Workflow.CreateNode(ctx, "u1", domain.NodeInput{Title: "a"})
		b, _ := repos.Workflow.CreateNode(ctx, "u1", domain.NodeInput{Title: "b"})
		c, err := repos.Workflow.CreateConnection(ctx, "u1", domain.ConnectionInput{From: a.ID, To: b.ID})
		require.NoError(t, err)
		require.NotNil(t, c)

		ok, err := repos.Workflow.DeleteConnection(ctx, "u2", c.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repos.Workflow.DeleteConnection(ctx, "u1", c.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repos.Workflow.DeleteConnection(ctx, "u1", c.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		_, found, err := repos.Workflow.FindConnectionIDByPair(ctx, "u1", a.ID, b.ID)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("NodeDeleteCascades", func(t *testing.T) {
		repos := open(t)
		a, _ := repos.Workflow.CreateNode(ctx, "u1", domain.NodeInput{Title: "a"})
		b, _ := repos.Workflow.CreateNode(ctx, "u1", domain.NodeInput{Title: "b"})
		c, _ := repos.Workflow.CreateNode(ctx, "u1", domain.NodeInput{Title: "c"})

		ab, err := repos.Workflow.CreateConnection(ctx, "u1", domain.ConnectionInput{From: a.ID, To: b.ID})
		require.NoError(t, err)
		require.NotNil(t, ab)
		cb, err := repos.Workflow.CreateConnection(ctx, "u1", domain.ConnectionInput{From: c.ID, To: b.ID})
		require.NoError(t, err)
		require.NotNil(t, cb)
		ac, err := repos.Workflow.CreateConnection(ctx, "u1", domain.ConnectionInput{From: a.ID, To: c.ID})
		require.NoError(t, err)
		require.NotNil(t, ac)

		f, err := repos.Workflow.AddFileToNode(ctx, "u1", b.ID, domain.FileInput{FileName: "b.bin", ContentType: "application/octet-stream", Buffer: []byte{1, 2, 3}})
		require.NoError(t, err)
		require.NotNil(t, f)

		// foreign tenant cannot delete
		ok, err := repos.Workflow.DeleteNode(ctx, "u2", b.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repos.Workflow.DeleteNode(ctx, "u1", b.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		state, err := repos.Workflow.List(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, state.Nodes, 2)
		require.Len(t, state.Connections, 1)
		assert.Equal(t, ac.ID, state.Connections[0].ID)
		for _, conn := range state.Connections {
			assert.NotEqual(t, b.ID, conn.From)
			assert.NotEqual(t, b.ID, conn.To)
		}

		gone, err := repos.Workflow.FindFile(ctx, "u1", f.ID)
		require.NoError(t, err)
		assert.Nil(t, gone)

		ok, err = repos.Workflow.DeleteNode(ctx, "u1", b.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("FileRoundTrip", func(t *testing.T) {
		repos := open(t)
		n, err := repos.Workflow.CreateNode(ctx, "u1", domain.NodeInput{Title: "n"})
		require.NoError(t, err)

		payload := AllBytes()
		f, err := repos.Workflow.AddFileToNode(ctx, "u1", n.ID, domain.FileInput{FileName: "all.bin", ContentType: "application/octet-stream", Buffer: payload})
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Positive(t, f.ID)

		// caller mutation after the call does not leak into the store
		payload[0] = 0xFF

		got, err := repos.Workflow.FindFile(ctx, "u1", f.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "all.bin", got.FileName)
		assert.Equal(t, "application/octet-stream", got.ContentType)
		assert.True(t, bytes.Equal(AllBytes(), got.Buffer))

		got.Buffer[1] = 0xFF
		again, err := repos.Workflow.FindFile(ctx, "u1", f.ID)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(AllBytes(), again.Buffer))

		state, err := repos.Workflow.List(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, state.Nodes, 1)
		require.Len(t, state.Nodes[0].Files, 1)
		assert.True(t, bytes.Equal(AllBytes(), state.Nodes[0].Files[0].Buffer))

		foreign, err := repos.Workflow.FindFile(ctx, "u2", f.ID)
		require.NoError(t, err)
		assert.Nil(t, foreign)

		ok, err := repos.Workflow.DeleteFile(ctx, "u2", f.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repos.Workflow.DeleteFile(ctx, "u1", f.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		gone, err := repos.Workflow.FindFile(ctx, "u1", f.ID)
		require.NoError(t, err)
		assert.Nil(t, gone)

		updated, err := repos.Workflow.UpdateNode(ctx, "u1", n.ID, domain.NodePatch{})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Empty(t, updated.Files)
	})

	t.Run("FileRequiresTenantNode", func(t *testing.T) {
		repos := open(t)
		n, err := repos.Workflow.CreateNode(ctx, "u1", domain.NodeInput{Title: "n"})
		require.NoError(t, err)

		f, err := repos.Workflow.AddFileToNode(ctx, "u2", n.ID, domain.FileInput{FileName: "x"})
		require.NoError(t, err)
		assert.Nil(t, f)

		f, err = repos.Workflow.AddFileToNode(ctx, "u1", n.ID+1000, domain.FileInput{FileName: "x"})
		require.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("EmptyFile", func(t *testing.T) {
		repos := open(t)
		n, _ := repos.Workflow.CreateNode(ctx, "u1", domain.NodeInput{Title: "n"})
		f, err := repos.Workflow.AddFileToNode(ctx, "u1", n.ID, domain.FileInput{FileName: "empty.txt", ContentType: "text/plain"})
		require.NoError(t, err)
		require.NotNil(t, f)

		got, err := repos.Workflow.FindFile(ctx, "u1", f.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Empty(t, got.Buffer)
	})

	t.Run("WorkflowTenantIsolation", func(t *testing.T) {
		repos := open(t)
		a, _ := repos.Workflow.CreateNode(ctx, "u1", domain.NodeInput{Title: "a"})
		b, _ := repos.Workflow.CreateNode(ctx, "u1", domain.NodeInput{Title: "b"})
		_, err := repos.Workflow.CreateConnection(ctx, "u1", domain.ConnectionInput{From: a.ID, To: b.ID})
		require.NoError(t, err)

		state, err := repos.Workflow.List(ctx, "u2")
		require.NoError(t, err)
		assert.Empty(t, state.Nodes)
		assert.Empty(t, state.Connections)

		_, found, err := repos.Workflow.FindConnectionIDByPair(ctx, "u2", a.ID, b.ID)
		require.NoError(t, err)
		assert.False(t, found)
	})
}
