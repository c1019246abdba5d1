package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cortex-rag/internal/ai"
	"cortex-rag/internal/model"
	"cortex-rag/internal/vectorindex"
)

func notebookFor(id, userID string) *model.Notebook {
	return &model.Notebook{ID: id, UserID: userID, Name: "notebook"}
}

type fakeNotebookStore struct {
	notebooks map[string]*model.Notebook
	err       error
}

func newFakeNotebookStore() *fakeNotebookStore {
	return &fakeNotebookStore{notebooks: make(map[string]*model.Notebook)}
}

func (s *fakeNotebookStore) Create(notebook *model.Notebook) error {
	if s.err != nil {
		return s.err
	}
	copied := *notebook
	s.notebooks[notebook.ID] = &copied
	return nil
}

func (s *fakeNotebookStore) ListByUserID(userID string) ([]model.Notebook, error) {
	if s.err != nil {
		return nil, s.err
	}
	var list []model.Notebook
	for _, nb := range s.notebooks {
		if nb.UserID == userID {
			list = append(list, *nb)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (s *fakeNotebookStore) GetByIDAndUserID(id, userID string) (*model.Notebook, error) {
	if s.err != nil {
		return nil, s.err
	}
	nb, ok := s.notebooks[id]
	if !ok || nb.UserID != userID {
		return nil, nil
	}
	copied := *nb
	return &copied, nil
}

func (s *fakeNotebookStore) Rename(id, userID, name string) error {
	if nb, ok := s.notebooks[id]; ok && nb.UserID == userID {
		nb.Name = name
	}
	return nil
}

func (s *fakeNotebookStore) DeleteByIDAndUserID(id, userID string) error {
	if nb, ok := s.notebooks[id]; ok && nb.UserID == userID {
		delete(s.notebooks, id)
	}
	return nil
}

type fakeFileStore struct {
	files map[string][]string
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{files: make(map[string][]string)}
}

func (s *fakeFileStore) Add(file *model.File) error {
	for _, name := range s.files[file.NotebookID] {
		if name == file.Name {
			return nil
		}
	}
	s.files[file.NotebookID] = append(s.files[file.NotebookID], file.Name)
	return nil
}

func (s *fakeFileStore) ListNamesByNotebookID(notebookID string) ([]string, error) {
	return append([]string(nil), s.files[notebookID]...), nil
}

func (s *fakeFileStore) DeleteByNotebookIDAndName(notebookID, name string) error {
	kept := s.files[notebookID][:0]
	for _, n := range s.files[notebookID] {
		if n != name {
			kept = append(kept, n)
		}
	}
	s.files[notebookID] = kept
	return nil
}

func (s *fakeFileStore) DeleteByNotebookID(notebookID string) error {
	delete(s.files, notebookID)
	return nil
}

type fakeMessageStore struct {
	messages map[string][]model.Message
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: make(map[string][]model.Message)}
}

func (s *fakeMessageStore) Create(message *model.Message) error {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	s.messages[message.NotebookID] = append(s.messages[message.NotebookID], *message)
	return nil
}

func (s *fakeMessageStore) ListByNotebookID(notebookID string) ([]model.Message, error) {
	return append([]model.Message(nil), s.messages[notebookID]...), nil
}

func (s *fakeMessageStore) DeleteByNotebookID(notebookID string) error {
	delete(s.messages, notebookID)
	return nil
}

// fakeIndex records upserts per namespace and serves canned query matches.
type fakeIndex struct {
	docs      map[string][]vectorindex.Document
	matches   []vectorindex.Match
	queried   []string
	dropped   []string
	upsertErr error
	dropErr   error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{docs: make(map[string][]vectorindex.Document)}
}

func (f *fakeIndex) Upsert(_ context.Context, namespace string, docs []vectorindex.Document) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.docs[namespace] = append(f.docs[namespace], docs...)
	return nil
}

func (f *fakeIndex) Query(_ context.Context, namespace string, _ []float32, k int) ([]vectorindex.Match, error) {
	f.queried = append(f.queried, namespace)
	if len(f.matches) > k {
		return f.matches[:k], nil
	}
	return f.matches, nil
}

func (f *fakeIndex) DropNamespace(_ context.Context, namespace string) error {
	if f.dropErr != nil {
		return f.dropErr
	}
	f.dropped = append(f.dropped, namespace)
	delete(f.docs, namespace)
	return nil
}

// fakeModel implements the embedding, description, and answering calls the
// services make against the model provider.
type fakeModel struct {
	embedCalls    [][]string
	embedErr      error
	descriptions  map[string]string
	describeErr   error
	answer        string
	answerErr     error
	searched      bool
	lastSystem    string
	lastPrompt    string
	lastSearchOn  bool
	describeCalls int
}

func (f *fakeModel) EmbedTexts(_ context.Context, _ string, texts []string) ([][]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	f.embedCalls = append(f.embedCalls, texts)
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(len(texts[i])), 1}
	}
	return vectors, nil
}

func (f *fakeModel) DescribeImage(_ context.Context, _ string, data []byte, _ string) (string, error) {
	f.describeCalls++
	if f.describeErr != nil {
		return "", f.describeErr
	}
	return f.descriptions[fmt.Sprintf("%d", len(data))], nil
}

func (f *fakeModel) Answer(_ context.Context, _, system, prompt string, searcher ai.Searcher) (string, bool, error) {
	f.lastSystem = system
	f.lastPrompt = prompt
	f.lastSearchOn = searcher != nil
	if f.answerErr != nil {
		return "", false, f.answerErr
	}
	return f.answer, f.searched, nil
}
