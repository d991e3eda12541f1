package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/itemtally/itemtally/internal/config"
	"github.com/itemtally/itemtally/internal/core"
	"github.com/itemtally/itemtally/internal/core/store"
)

// resumeBackend is the resume store plus the admin queries used by the
// resume subcommands.
type resumeBackend interface {
	LoadResume(ctx context.Context, collection string) (core.ResumeRecord, bool, error)
	SaveResume(ctx context.Context, record core.ResumeRecord) error
	EnsureResumeSchema(ctx context.Context) error
	ListResume(ctx context.Context, q store.ResumeQuery) ([]core.ResumeRecord, error)
	CountResume(ctx context.Context, q store.ResumeQuery) (int, error)
	ResetResume(ctx context.Context, q store.ResumeQuery) (int64, error)
	Close() error
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// openResume opens the configured resume backend and verifies it is usable.
func openResume(ctx context.Context, cfg *config.Config) (resumeBackend, error) {
	switch backend := strings.ToLower(strings.TrimSpace(cfg.Resume.Backend)); backend {
	case "", "sql":
		return openStore(ctx, cfg)
	case "redis":
		resume, err := store.NewRedisResume(cfg.Resume.RedisURL, cfg.Resume.KeyPrefix)
		if err != nil {
			return nil, err
		}
		if err := resume.EnsureResumeSchema(ctx); err != nil {
			_ = resume.Close()
			return nil, err
		}
		return resume, nil
	default:
		return nil, invalidConfig(fmt.Errorf("unsupported resume backend: %s", backend))
	}
}
