package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"cortex-rag/internal/model"
	"cortex-rag/internal/pkg/logger"
	"cortex-rag/internal/vectorindex"
)

// NotebookStore persists notebooks scoped to their owner.
type NotebookStore interface {
	Create(notebook *model.Notebook) error
	ListByUserID(userID string) ([]model.Notebook, error)
	GetByIDAndUserID(id, userID string) (*model.Notebook, error)
	Rename(id, userID, name string) error
	DeleteByIDAndUserID(id, userID string) error
}

// FileStore persists the file names attached to a notebook.
type FileStore interface {
	Add(file *model.File) error
	ListNamesByNotebookID(notebookID string) ([]string, error)
	DeleteByNotebookIDAndName(notebookID, name string) error
	DeleteByNotebookID(notebookID string) error
}

// MessageStore persists notebook conversations.
type MessageStore interface {
	Create(message *model.Message) error
	ListByNotebookID(notebookID string) ([]model.Message, error)
	DeleteByNotebookID(notebookID string) error
}

// NotebookService owns the notebook lifecycle. Every operation takes the
// calling user's id and refuses to see other users' notebooks.
type NotebookService struct {
	notebooks NotebookStore
	files     FileStore
	messages  MessageStore
	keys      KeyStore
	index     vectorindex.Index
	log       *logger.Logger
}

func NewNotebookService(
	notebooks NotebookStore,
	files FileStore,
	messages MessageStore,
	keys KeyStore,
	index vectorindex.Index,
	log *logger.Logger,
) *NotebookService {
	if log == nil {
		log = logger.NewNop()
	}
	return &NotebookService{
		notebooks: notebooks,
		files:     files,
		messages:  messages,
		keys:      keys,
		index:     index,
		log:       log,
	}
}

func (s *NotebookService) Create(ctx context.Context, userID, name string) (*model.Notebook, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: notebook name is empty", ErrInvalidInput)
	}

	notebook := &model.Notebook{
		ID:     uuid.NewString(),
		UserID: userID,
		Name:   name,
		Files:  []string{},
	}
	if err := s.notebooks.Create(notebook); err != nil {
		return nil, err
	}
	s.log.Info("notebook created", "notebook_id", notebook.ID, "user_id", userID)
	return notebook, nil
}

// List returns the user's notebooks with their file names attached.
func (s *NotebookService) List(ctx context.Context, userID string) ([]model.Notebook, error) {
	notebooks, err := s.notebooks.ListByUserID(userID)
	if err != nil {
		return nil, err
	}
	for i := range notebooks {
		names, err := s.files.ListNamesByNotebookID(notebooks[i].ID)
		if err != nil {
			return nil, err
		}
		if names == nil {
			names = []string{}
		}
		notebooks[i].Files = names
	}
	return notebooks, nil
}

// Get returns one notebook with its files and full conversation history.
func (s *NotebookService) Get(ctx context.Context, userID, notebookID string) (*model.Notebook, error) {
	notebook, err := requireOwned(s.notebooks, userID, notebookID)
	if err != nil {
		return nil, err
	}

	names, err := s.files.ListNamesByNotebookID(notebookID)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	notebook.Files = names

	messages, err := s.messages.ListByNotebookID(notebookID)
	if err != nil {
		return nil, err
	}
	notebook.Messages = messages
	return notebook, nil
}

func (s *NotebookService) Rename(ctx context.Context, userID, notebookID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: notebook name is empty", ErrInvalidInput)
	}
	if _, err := requireOwned(s.notebooks, userID, notebookID); err != nil {
		return err
	}
	return s.notebooks.Rename(notebookID, userID, name)
}

// Delete removes a notebook and everything hanging off it. The vector
// namespace goes first: if that fails the notebook row survives and the
// caller can retry, whereas the reverse order would orphan the vectors.
func (s *NotebookService) Delete(ctx context.Context, userID, notebookID string) error {
	if _, err := requireOwned(s.notebooks, userID, notebookID); err != nil {
		return err
	}

	if err := s.index.DropNamespace(ctx, notebookID); err != nil {
		return fmt.Errorf("drop vector namespace failed: %w", err)
	}
	if err := s.messages.DeleteByNotebookID(notebookID); err != nil {
		return err
	}
	if err := s.files.DeleteByNotebookID(notebookID); err != nil {
		return err
	}
	if err := s.notebooks.DeleteByIDAndUserID(notebookID, userID); err != nil {
		return err
	}
	s.log.Info("notebook deleted", "notebook_id", notebookID, "user_id", userID)
	return nil
}

// DeleteFile removes a file from the notebook's list. Vectors ingested from
// the file stay in the namespace until the notebook itself is deleted; the
// index has no per-file granularity.
func (s *NotebookService) DeleteFile(ctx context.Context, userID, notebookID, name string) error {
	if name == "" {
		return fmt.Errorf("%w: file name is empty", ErrInvalidInput)
	}
	if _, err := requireOwned(s.notebooks, userID, notebookID); err != nil {
		return err
	}

	names, err := s.files.ListNamesByNotebookID(notebookID)
	if err != nil {
		return err
	}
	found := false
	for _, n := range names {
		if n == name {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: file %q", ErrNotFound, name)
	}
	return s.files.DeleteByNotebookIDAndName(notebookID, name)
}

// PurgeAccount deletes everything the user owns, notebooks and stored
// credential alike. Stops at the first failure so a retry resumes there.
func (s *NotebookService) PurgeAccount(ctx context.Context, userID string) error {
	notebooks, err := s.notebooks.ListByUserID(userID)
	if err != nil {
		return err
	}
	for _, notebook := range notebooks {
		if err := s.Delete(ctx, userID, notebook.ID); err != nil {
			return fmt.Errorf("purge notebook %s failed: %w", notebook.ID, err)
		}
	}
	if err := s.keys.DeleteByUserID(userID); err != nil {
		return err
	}
	s.log.Info("account purged", "user_id", userID, "notebooks", len(notebooks))
	return nil
}

// requireOwned loads a notebook the user owns, or ErrNotFound. Missing and
// foreign notebooks are indistinguishable to the caller.
func requireOwned(store NotebookStore, userID, notebookID string) (*model.Notebook, error) {
	notebook, err := store.GetByIDAndUserID(notebookID, userID)
	if err != nil {
		return nil, err
	}
	if notebook == nil {
		return nil, fmt.Errorf("%w: notebook %s", ErrNotFound, notebookID)
	}
	return notebook, nil
}
