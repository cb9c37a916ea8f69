package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"telegram-ai-diary/internal/config"
	"telegram-ai-diary/internal/health"
)

// newTriggerCmd runs one daily routine right away.
//
// With a health address configured the running bot does the work, so the
// routine shares its per-chat locks. --local runs it in this process and is
// only safe while the bot is stopped.
func newTriggerCmd(v *viper.Viper) *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:       "trigger morning|evening",
		Short:     "Send the morning or evening message to every chat now",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{health.RoutineMorning, health.RoutineEvening},
		RunE: func(cmd *cobra.Command, args []string) error {
			routine := args[0]

			if !local {
				addr := v.GetString(config.KeyHealthAddr)
				if addr == "" {
					return errors.New("no health address to reach the running bot: set HEALTH_ADDR or --health-addr, or pass --local while the bot is stopped")
				}
				if err := health.Trigger(cmd.Context(), addr, routine); err != nil {
					return err
				}
				slog.Info("routine sent by running bot", "routine", routine, "addr", addr)
				return nil
			}

			a, err := newApp(v)
			if err != nil {
				return err
			}
			defer a.close()

			a.log.Warn("running routine in a separate process; make sure the bot is stopped", "routine", routine)
			switch routine {
			case health.RoutineMorning:
				a.handler.SendMorning(cmd.Context())
			case health.RoutineEvening:
				a.handler.SendEvening(cmd.Context())
			default:
				return fmt.Errorf("unknown routine %q", routine)
			}
			a.log.Info("routine sent", "routine", routine)
			return nil
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "run the routine in this process instead of the running bot (bot must be stopped)")
	return cmd
}
