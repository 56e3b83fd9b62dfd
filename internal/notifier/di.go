package notifier

import (
	"github.com/foxseedlab/vcdelay/internal/discord"
	"github.com/foxseedlab/vcdelay/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (Notifier, error) {
		dc := do.MustInvoke[discord.Client](i)
		wh := do.MustInvoke[webhook.Sender](i)
		return NewDiscordNotifier(dc, wh), nil
	})
}
