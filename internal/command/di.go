package command

import (
	"github.com/foxseedlab/vcdelay/internal/config"
	"github.com/foxseedlab/vcdelay/internal/discord"
	"github.com/foxseedlab/vcdelay/internal/repository"
	"github.com/foxseedlab/vcdelay/internal/session"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Handler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		dc := do.MustInvoke[discord.Client](i)
		registry := do.MustInvoke[*session.Registry](i)
		return NewHandler(cfg, repo, dc, registry), nil
	})
}
