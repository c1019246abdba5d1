package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"cortex-rag/internal/app"
	"cortex-rag/internal/model"
	"cortex-rag/internal/pkg/logger"
)

// IngestWorker consumes queued ingestion jobs and runs them through the
// ingest service. Document processing involves PDF parsing and a chain of
// model calls, so it happens here instead of inside the upload request.
type IngestWorker struct {
	conn      *amqp.Connection
	ingest    *app.IngestService
	keyring   *app.KeyringService
	queueName string
	log       *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestWorker(conn *amqp.Connection, ingest *app.IngestService, keyring *app.KeyringService, queueName string, log *logger.Logger) *IngestWorker {
	if log == nil {
		log = logger.NewNop()
	}
	return &IngestWorker{
		conn:      conn,
		ingest:    ingest,
		keyring:   keyring,
		queueName: queueName,
		log:       log,
	}
}

func (w *IngestWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	// One job at a time; each job can hold the model busy for a while.
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var job model.IngestJob
				if err := json.Unmarshal(d.Body, &job); err != nil {
					w.log.Error("decode ingest job failed", "error", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := w.process(workerCtx, job); err != nil {
					w.log.Error("ingest job failed",
						"notebook_id", job.NotebookID,
						"file", job.FileName,
						"error", err,
					)
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

// process runs one job. The temp file is removed on every path, success or
// not; a failed job must not leave uploads behind.
func (w *IngestWorker) process(ctx context.Context, job model.IngestJob) error {
	if job.Path != "" {
		defer func() {
			if err := os.Remove(job.Path); err != nil && !os.IsNotExist(err) {
				w.log.Warn("remove upload temp file failed", "path", job.Path, "error", err)
			}
		}()
	}

	credential, err := w.keyring.Resolve(job.UserID, job.Email)
	if err != nil {
		return fmt.Errorf("resolve credential failed: %w", err)
	}

	if err := w.ingest.IngestFile(ctx, credential, job.UserID, job.NotebookID, job.FileName, job.Path); err != nil {
		return err
	}
	w.log.Info("file ingested", "notebook_id", job.NotebookID, "file", job.FileName)
	return nil
}

func (w *IngestWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
