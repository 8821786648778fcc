package cli

import (
	"context"
	"os"
	"path/filepath"

	"telegram-session-converter/internal/domain/sessions"
	"telegram-session-converter/internal/domain/sessions/sessionerr"
	"telegram-session-converter/internal/infra/logger"
	"telegram-session-converter/internal/infra/pr"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// checkItem — сессия из каталога, поставленная в очередь проверки.
type checkItem struct {
	name    string
	format  string
	manager *sessions.Manager
}

// checkResult — итог проверки одной сессии.
type checkResult struct {
	checkItem
	account sessions.Account
	err     error
}

func (r checkResult) status() string {
	var connErr *sessionerr.ConnectionError
	switch {
	case r.err == nil:
		return "VALID"
	case errors.Is(r.err, sessionerr.ErrUnauthorized):
		return "REVOKED"
	case errors.As(r.err, &connErr):
		return "NETWORK"
	default:
		return "ERROR"
	}
}

// check проверяет все сессии каталога: файлы Telethon/Pyrogram, gotd (.json) и строки (.txt).
// Нераспознанные файлы пропускаются.
func (c *Commands) check(ctx context.Context, args []string) error {
	fs := newFlagSet("check")
	workers := fs.Int("workers", c.workers, "number of parallel checks")
	if err := fs.Parse(args); err != nil {
		return err
	}
	dir := fs.Arg(0)
	if dir == "" {
		return errors.New("usage: check [-workers N] <dir>")
	}
	checker, err := c.networkChecker()
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	log := logger.Logger().With(zap.String("run_id", runID), zap.String("dir", dir))

	items, err := c.collect(ctx, dir, log)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		pr.Printf("No sessions found in %s\n", dir)
		return nil
	}
	log.Info("session check started", zap.Int("sessions", len(items)), zap.Int("workers", *workers))

	var limiter *rate.Limiter
	if c.rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.rps), 1)
	}

	results := make([]checkResult, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*workers, 1))
	for i, item := range items {
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return errors.Wrap(err, "rate limit")
				}
			}
			acc, err := item.manager.Check(gctx, checker)
			results[i] = checkResult{checkItem: item, account: acc, err: err}
			log.Debug("session checked",
				zap.String("file", item.name),
				zap.String("auth_key_id", item.manager.AuthKeyID()),
				zap.Error(err),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	counts := make(map[string]int, 4) //nolint:mnd // число статусов
	for _, r := range results {
		st := r.status()
		counts[st]++
		switch {
		case r.err == nil:
			pr.Printf("%-8s %-9s %s: %s\n", st, r.format, r.name, describeAccount(r.account))
		default:
			pr.Printf("%-8s %-9s %s: %v\n", st, r.format, r.name, r.err)
		}
	}
	pr.Printf("Checked %d sessions: valid=%d revoked=%d network=%d error=%d\n",
		len(results), counts["VALID"], counts["REVOKED"], counts["NETWORK"], counts["ERROR"])
	log.Info("session check finished",
		zap.Int("valid", counts["VALID"]),
		zap.Int("revoked", counts["REVOKED"]),
		zap.Int("network", counts["NETWORK"]),
	)
	return nil
}

// collect загружает все распознаваемые сессии каталога в порядке имён файлов.
func (c *Commands) collect(ctx context.Context, dir string, log *zap.Logger) ([]checkItem, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "read sessions dir")
	}
	items := make([]checkItem, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		m, format, err := c.load(ctx, source{input: path, from: formatAuto})
		if err != nil {
			log.Debug("skip file", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		items = append(items, checkItem{name: entry.Name(), format: format, manager: m})
	}
	return items, nil
}
