package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	bookingx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/booking"
	llmx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/llm"
	messengerx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/messenger"
	orchestratorx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/orchestrator"
	schedulerx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/scheduler"
	storex "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/store"
	toolx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/tool"
	apix "github.com/tanpawarit/Valora-Realty-Lead-Qualification/api"
	calendarx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/pkg/calendar"
	configx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/pkg/config"
	_ "github.com/tanpawarit/Valora-Realty-Lead-Qualification/pkg/logger/autoload"
	mailerx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/pkg/mailer"
	whatsappx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/pkg/whatsapp"
	xaix "github.com/tanpawarit/Valora-Realty-Lead-Qualification/pkg/xai"
)

type AppConfig struct {
	MaxHistory       int           `envconfig:"MAX_HISTORY" default:"30"`
	SendQuota        int           `envconfig:"SEND_QUOTA" default:"10"`
	FollowupInterval time.Duration `envconfig:"FOLLOWUP_INTERVAL" default:"30s"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("APP")

	db, err := storex.OpenDB(*configx.MustNew[storex.Config]("POSTGRES"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open postgres")
	}
	defer db.Close()

	leads := storex.NewLeads(db)
	conversations := storex.NewConversations(db, appCfg.MaxHistory)
	bookings := storex.NewBookings(db)
	messageLog := storex.NewMessageLog(db)

	followups, err := schedulerx.New(*configx.MustNew[schedulerx.Config]("REDIS"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer followups.Close()

	xaiCfg := configx.MustNew[xaix.Config]("XAI")
	xaiClient := xaix.NewClient(*xaiCfg)
	if xaiClient == nil {
		log.Fatal().Msg("failed to initialize model client")
	}
	model, err := llmx.New(xaiClient, xaiCfg.ChatModel, xaiCfg.SearchModel)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build model client")
	}

	whatsapp := whatsappx.MustNew(*configx.MustNew[whatsappx.Config]("WHATSAPP"))
	mailer := mailerx.MustNew(*configx.MustNew[mailerx.Config]("MAILER"))
	calendar := calendarx.MustNew(*configx.MustNew[calendarx.Config]("CALENDAR"))

	messenger, err := messengerx.New(whatsapp, messageLog, appCfg.SendQuota)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build messenger")
	}

	booker, err := bookingx.New(bookings, leads, calendar, mailer, messenger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build booking service")
	}

	executor, err := toolx.NewExecutor(leads, conversations, booker, calendar, followups, messenger, model)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build tool executor")
	}

	agent, err := orchestratorx.New(
		*configx.MustNew[orchestratorx.Config]("AGENT"),
		model, leads, conversations, executor, messenger,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build agent")
	}
	agent.WithSummarizer(model)

	go dispatchFollowups(ctx, followups, conversations, messenger, appCfg.FollowupInterval)

	server := apix.NewServer(agent, leads, conversations, appCfg.MaxHistory)
	apiCfg := configx.MustNew[apix.Config]("HTTP")
	if err := server.Run(ctx, apiCfg.Address); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

// dispatchFollowups periodically drains due follow-ups and sends them.
// Stopped conversations never receive follow-ups even if entries were
// queued before the stop.
func dispatchFollowups(
	ctx context.Context,
	followups *schedulerx.Scheduler,
	conversations *storex.Conversations,
	messenger *messengerx.Messenger,
	interval time.Duration,
) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due, err := followups.Due(ctx, now)
			if err != nil {
				log.Warn().Err(err).Msg("failed to read due follow-ups")
				continue
			}
			for _, f := range due {
				stopped, err := conversations.IsStopped(ctx, f.Phone)
				if err != nil || stopped {
					continue
				}
				if err := messenger.SendText(ctx, f.Phone, f.Text); err != nil {
					log.Warn().Str("phone", f.Phone).Err(err).Msg("failed to send follow-up")
				}
			}
		}
	}
}
