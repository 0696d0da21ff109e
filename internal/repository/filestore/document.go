package filestore

import (
	"encoding/base64"
	"strconv"

	"github.com/dosacha/simvex-api/internal/domain"
	"github.com/dosacha/simvex-api/internal/repository/memory"

	"github.com/pkg/errors"
)

// document is the on-disk JSON layout.
// Sequences are pointers so a missing field can be told apart from zero.
type document struct {
	MemoIDSeq       *int64 `json:"memoIdSeq"`
	NodeIDSeq       *int64 `json:"nodeIdSeq"`
	ConnectionIDSeq *int64 `json:"connectionIdSeq"`
	FileIDSeq       *int64 `json:"fileIdSeq"`

	MemoStore     map[string]map[string][]memoDoc    `json:"memoStore"`
	HistoryStore  map[string]map[string][]historyDoc `json:"historyStore"`
	WorkflowStore map[string]workflowDoc             `json:"workflowStore"`
}

type memoDoc struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type historyDoc struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Timestamp string `json:"timestamp"`
}

type fileDoc struct {
	ID           int64  `json:"id"`
	FileName     string `json:"fileName"`
	ContentType  string `json:"contentType"`
	BufferBase64 string `json:"bufferBase64"`
}

type nodeDoc struct {
	ID      int64     `json:"id"`
	Title   string    `json:"title"`
	Content string    `json:"content"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	Files   []fileDoc `json:"files"`
}

type connectionDoc struct {
	ID         int64  `json:"id"`
	From       int64  `json:"from"`
	To         int64  `json:"to"`
	FromAnchor string `json:"fromAnchor"`
	ToAnchor   string `json:"toAnchor"`
}

type workflowDoc struct {
	Nodes       []nodeDoc       `json:"nodes"`
	Connections []connectionDoc `json:"connections"`
}

func seqOrDefault(p *int64) int64 {
	if p == nil {
		return 1
	}
	return *p
}

// encode converts live state into the persisted shape, buffers become base64 strings
func encode(state *memory.State, seq memory.Sequences) *document {
	doc := &document{
		MemoIDSeq:       &seq.Memo,
		NodeIDSeq:       &seq.Node,
		ConnectionIDSeq: &seq.Connection,
		FileIDSeq:       &seq.File,
		MemoStore:       map[string]map[string][]memoDoc{},
		HistoryStore:    map[string]map[string][]historyDoc{},
		WorkflowStore:   map[string]workflowDoc{},
	}

	for tenant, byModel := range state.Memos {
		models := map[string][]memoDoc{}
		for modelID, memos := range byModel {
			list := make([]memoDoc, 0, len(memos))
			for _, m := range memos {
				list = append(list, memoDoc{ID: m.ID, Title: m.Title, Content: m.Content})
			}
			models[strconv.FormatInt(modelID, 10)] = list
		}
		doc.MemoStore[tenant] = models
	}

	for tenant, byModel := range state.Histories {
		models := map[string][]historyDoc{}
		for modelID, items := range byModel {
			list := make([]historyDoc, 0, len(items))
			for _, h := range items {
				list = append(list, historyDoc{Question: h.Question, Answer: h.Answer, Timestamp: h.Timestamp})
			}
			models[strconv.FormatInt(modelID, 10)] = list
		}
		doc.HistoryStore[tenant] = models
	}

	for tenant, wf := range state.Workflows {
		w := workflowDoc{
			Nodes:       make([]nodeDoc, 0, len(wf.Nodes)),
			Connections: make([]connectionDoc, 0, len(wf.Connections)),
		}
		for _, n := range wf.Nodes {
			nd := nodeDoc{ID: n.ID, Title: n.Title, Content: n.Content, X: n.X, Y: n.Y, Files: make([]fileDoc, 0, len(n.Files))}
			for _, f := range n.Files {
				nd.Files = append(nd.Files, fileDoc{
					ID:           f.ID,
					FileName:     f.FileName,
					ContentType:  f.ContentType,
					BufferBase64: base64.StdEncoding.EncodeToString(f.Buffer),
				})
			}
			w.Nodes = append(w.Nodes, nd)
		}
		for _, c := range wf.Connections {
			w.Connections = append(w.Connections, connectionDoc{
				ID:         c.ID,
				From:       c.From,
				To:         c.To,
				FromAnchor: c.FromAnchor,
				ToAnchor:   c.ToAnchor,
			})
		}
		doc.WorkflowStore[tenant] = w
	}

	return doc
}

// decode rebuilds live state from a parsed document, missing sequences default to 1
func decode(doc *document) (*memory.State, memory.Sequences, error) {
	state := memory.NewState()
	seq := memory.Sequences{
		Memo:       seqOrDefault(doc.MemoIDSeq),
		Node:       seqOrDefault(doc.NodeIDSeq),
		Connection: seqOrDefault(doc.ConnectionIDSeq),
		File:       seqOrDefault(doc.FileIDSeq),
	}

	for tenant, byModel := range doc.MemoStore {
		models := map[int64][]*domain.Memo{}
		for key, memos := range byModel {
			modelID, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				return nil, seq, errors.Wrapf(err, "memoStore[%s]: invalid model id %q", tenant, key)
			}
			list := make([]*domain.Memo, 0, len(memos))
			for _, m := range memos {
				list = append(list, &domain.Memo{ID: m.ID, Title: m.Title, Content: m.Content})
			}
			models[modelID] = list
		}
		state.Memos[tenant] = models
	}

	for tenant, byModel := range doc.HistoryStore {
		models := map[int64][]*domain.AiHistoryItem{}
		for key, items := range byModel {
			modelID, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				return nil, seq, errors.Wrapf(err, "historyStore[%s]: invalid model id %q", tenant, key)
			}
			list := make([]*domain.AiHistoryItem, 0, len(items))
			for _, h := range items {
				list = append(list, &domain.AiHistoryItem{Question: h.Question, Answer: h.Answer, Timestamp: h.Timestamp})
			}
			models[modelID] = list
		}
		state.Histories[tenant] = models
	}

	for tenant, w := range doc.WorkflowStore {
		wf := domain.NewWorkflowState()
		for _, nd := range w.Nodes {
			n := &domain.WorkflowNode{ID: nd.ID, Title: nd.Title, Content: nd.Content, X: nd.X, Y: nd.Y, Files: []*domain.WorkflowFile{}}
			for _, fd := range nd.Files {
				buf, err := base64.StdEncoding.DecodeString(fd.BufferBase64)
				if err != nil {
					return nil, seq, errors.Wrapf(err, "workflowStore[%s]: file %d has invalid base64", tenant, fd.ID)
				}
				n.Files = append(n.Files, &domain.WorkflowFile{ID: fd.ID, FileName: fd.FileName, ContentType: fd.ContentType, Buffer: buf})
			}
			wf.Nodes = append(wf.Nodes, n)
		}
		for _, cd := range w.Connections {
			wf.Connections = append(wf.Connections, &domain.WorkflowConnection{
				ID:         cd.ID,
				From:       cd.From,
				To:         cd.To,
				FromAnchor: cd.FromAnchor,
				ToAnchor:   cd.ToAnchor,
			})
		}
		state.Workflows[tenant] = wf
	}

	return state, seq, nil
}
