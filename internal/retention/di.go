package retention

import (
	"github.com/foxseedlab/vcdelay/internal/config"
	"github.com/foxseedlab/vcdelay/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Job, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		return NewJob(repo, cfg.NotificationLogRetentionDays, cfg.NotificationLogCleanupEvery), nil
	})
}
