package session

import (
	"github.com/foxseedlab/vcdelay/internal/config"
	"github.com/foxseedlab/vcdelay/internal/discord"
	"github.com/foxseedlab/vcdelay/internal/notifier"
	"github.com/foxseedlab/vcdelay/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Registry, error) {
		return NewRegistry(), nil
	})
	do.Provide(injector, func(i do.Injector) (*Scheduler, error) {
		repo := do.MustInvoke[repository.Repository](i)
		return NewScheduler(repo), nil
	})
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		dc := do.MustInvoke[discord.Client](i)
		n := do.MustInvoke[notifier.Notifier](i)
		registry := do.MustInvoke[*Registry](i)
		scheduler := do.MustInvoke[*Scheduler](i)
		return NewManager(cfg, repo, dc, n, registry, scheduler), nil
	})
}
