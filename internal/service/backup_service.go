package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

const (
	RestoreReplace = "replace"
	RestoreMerge   = "merge"
)

// Backup выгрузка документа для скачивания
type Backup struct {
	Filename string
	Document domain.Document
}

// Counts размеры коллекций после восстановления
type Counts struct {
	Products          int `json:"products"`
	Orders            int `json:"orders"`
	PushSubscriptions int `json:"pushSubscriptions"`
}

// RestoreResult итог восстановления
type RestoreResult struct {
	Mode   string `json:"mode"`
	Counts Counts `json:"counts"`
	Backup string `json:"backup"`
}

// BackupService экспорт и восстановление документа целиком
type BackupService struct {
	docs repository.DocumentRepository
	tx   repository.TxManager
	log  *slog.Logger
	now  func() time.Time
}

func NewBackupService(docs repository.DocumentRepository, tx repository.TxManager, logger *slog.Logger) *BackupService {
	return &BackupService{docs: docs, tx: tx, log: logger, now: time.Now}
}

// Export returns a consistent copy of the document and its download name.
func (s *BackupService) Export(ctx context.Context) Backup {
	return Backup{
		Filename: "db-backup-" + repository.Timestamp(s.now()) + ".json",
		Document: s.docs.Snapshot(ctx),
	}
}

// ParseRestoreBody accepts the document itself or {"db": document}.
func ParseRestoreBody(raw []byte) (domain.Document, error) {
	var wrapper struct {
		DB json.RawMessage `json:"db"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && isObject(wrapper.DB) {
		raw = wrapper.DB
	}
	doc, err := repository.ParseStrict(raw)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return doc, nil
}

func isObject(raw json.RawMessage) bool {
	t := strings.TrimSpace(string(raw))
	return strings.HasPrefix(t, "{")
}

// Restore validates raw, copies the current file aside and then replaces or merges,
// all under the document write lock. Nothing is mutated when validation or the copy fails.
func (s *BackupService) Restore(ctx context.Context, raw []byte, mode string) (*RestoreResult, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = RestoreReplace
	}
	if mode != RestoreReplace && mode != RestoreMerge {
		return nil, fmt.Errorf("%w: unknown restore mode %q", ErrInvalidInput, mode)
	}
	incoming, err := ParseRestoreBody(raw)
	if err != nil {
		return nil, err
	}

	res := &RestoreResult{Mode: mode}
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		name, err := s.docs.BackupFile(ctx)
		if err != nil {
			return err
		}
		res.Backup = name
		final := incoming
		if mode == RestoreMerge {
			final = Merge(s.docs.Snapshot(ctx), incoming)
		}
		res.Counts = Counts{
			Products:          len(final.Products),
			Orders:            len(final.Orders),
			PushSubscriptions: len(final.PushSubscriptions),
		}
		return s.docs.Replace(ctx, final)
	})
	if err != nil {
		if errors.Is(err, repository.ErrPersist) {
			s.log.Error("restore_persist_failed", "mode", mode, "backup", res.Backup, "error", err)
		}
		return nil, err
	}
	s.log.Info("restore_done", "mode", mode, "backup", res.Backup,
		"products", res.Counts.Products, "orders", res.Counts.Orders, "subscriptions", res.Counts.PushSubscriptions)
	return res, nil
}

// Merge reconciles two documents: products and orders by id with incoming winning,
// subscriptions by endpoint keeping the first seen (current before incoming).
func Merge(current, incoming domain.Document) domain.Document {
	out := domain.NewDocument()
	out.Products = mergeByID(current.Products, incoming.Products, func(p domain.Product) int64 { return p.ID })
	out.Orders = mergeByID(current.Orders, incoming.Orders, func(o domain.Order) int64 { return o.ID })

	seen := make(map[string]struct{})
	for _, sub := range append(append([]domain.PushSubscription{}, current.PushSubscriptions...), incoming.PushSubscriptions...) {
		if _, ok := seen[sub.Endpoint]; ok {
			continue
		}
		seen[sub.Endpoint] = struct{}{}
		out.PushSubscriptions = append(out.PushSubscriptions, sub)
	}

	if len(current.Extra)+len(incoming.Extra) > 0 {
		out.Extra = make(map[string]json.RawMessage)
		maps.Copy(out.Extra, current.Extra)
		maps.Copy(out.Extra, incoming.Extra)
	}
	return out
}

func mergeByID[T any](base, inc []T, id func(T) int64) []T {
	out := make([]T, 0, len(base)+len(inc))
	pos := make(map[int64]int, len(base)+len(inc))
	for _, list := range [][]T{base, inc} {
		for _, v := range list {
			if i, ok := pos[id(v)]; ok {
				out[i] = v
				continue
			}
			pos[id(v)] = len(out)
			out = append(out, v)
		}
	}
	return out
}
