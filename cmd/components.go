package main

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"fabrics-catalog-service/internal/airtable"
	"fabrics-catalog-service/internal/api"
	"fabrics-catalog-service/internal/catalog"
	"fabrics-catalog-service/internal/channel"
	"fabrics-catalog-service/internal/channel/graphapi"
	"fabrics-catalog-service/internal/channel/messenger"
	"fabrics-catalog-service/internal/channel/telegram"
	"fabrics-catalog-service/internal/channel/whatsapp"
	"fabrics-catalog-service/internal/config"
	"fabrics-catalog-service/internal/conversation"
	"fabrics-catalog-service/internal/events"
	"fabrics-catalog-service/internal/faq"
	"fabrics-catalog-service/internal/notify"
	"fabrics-catalog-service/internal/reservation"
	"fabrics-catalog-service/internal/store"
)

// pollSlack keeps the HTTP client timeout above the long-poll timeout.
const pollSlack = 10 * time.Second

type closer struct {
	name  string
	close func() error
}

// components is the wired application.
type components struct {
	catalog      *catalog.Service
	engine       *conversation.Engine
	reservations *reservation.Service
	webhooks     *api.WebhookHandler
	poller       *telegram.Poller

	pingDB    func(context.Context) error
	pingCache func(context.Context) error
	channels  []string
	closers   []closer
}

func newAirtableClient(cfg *config.Config) *airtable.Client {
	return airtable.NewClient(cfg.Airtable.BaseURL, cfg.Airtable.BaseID, cfg.Airtable.APIKey, cfg.OutboundTimeout)
}

func catalogTables(cfg *config.Config) catalog.Tables {
	return catalog.Tables{Categories: cfg.Airtable.CategoriesTable, Products: cfg.Airtable.ProductsTable}
}

func buildComponents(ctx context.Context, cfg *config.Config) (_ *components, err error) {
	comps := &components{}
	defer func() {
		if err != nil {
			comps.close()
		}
	}()

	airtableClient := newAirtableClient(cfg)

	// --- Catalog cache ---
	var cache catalog.Cache = store.NewMemoryCache()
	if cfg.Redis.Enabled() {
		client, err := store.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		redisCache := store.NewRedisCache(client, cfg.Redis.Prefix)
		cache = redisCache
		comps.pingCache = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		comps.closers = append(comps.closers, closer{"redis", redisCache.Close})
		log.WithField("addr", cfg.Redis.Addr).Info("Catalog cache: redis")
	}
	comps.catalog = catalog.NewService(airtableClient, catalogTables(cfg), cache, cfg.CatalogCacheTTL).
		WithLoadTimeout(cfg.OutboundTimeout)

	// --- Staff registry ---
	var kv store.KeyValueStore = store.NewMemoryStore()
	if cfg.Postgres.Enabled() {
		db, err := openDatabase(ctx, cfg.Postgres.DSN())
		if err != nil {
			return nil, err
		}
		pg := store.NewPostgresStore(db)
		comps.closers = append(comps.closers, closer{"postgres", pg.Close})
		version, err := store.Migrate(db)
		if err != nil {
			return nil, err
		}
		log.WithField("schema_version", version).Info("Staff registry: postgres")
		kv = pg
		comps.pingDB = pg.Ping
	} else {
		log.Warn("Staff registry kept in memory; registrations are lost on restart")
	}
	registry := notify.NewRegistry(kv)
	if err := registry.Seed(ctx, cfg.Telegram.ChatIDs); err != nil {
		return nil, err
	}

	// --- Conversation ---
	var llm faq.LLM
	if cfg.FAQ.LLMEnabled() {
		llm = faq.NewHuggingFaceClient(cfg.FAQ.InferenceURL, cfg.FAQ.HuggingFaceAPIKey, cfg.FAQ.Timeout)
	}
	comps.engine = conversation.NewEngine(comps.catalog, faq.NewResponder(faq.DefaultRules(), llm), conversation.DefaultMessages())

	// --- Channels ---
	var messengerHook, whatsappHook *api.GraphWebhook
	if cfg.Messenger.Enabled() {
		graph := graphapi.NewClient(cfg.Messenger.GraphBaseURL, messenger.GraphVersion, cfg.Messenger.PageAccessToken, cfg.OutboundTimeout)
		messengerHook = &api.GraphWebhook{
			Bot:         channel.NewBot(messenger.Name, comps.engine, channel.MessengerLimits, messenger.NewGateway(graph)),
			VerifyToken: cfg.Messenger.VerifyToken,
		}
		comps.channels = append(comps.channels, messenger.Name)
	}
	if cfg.WhatsApp.Enabled() {
		graph := graphapi.NewClient(cfg.WhatsApp.GraphBaseURL, whatsapp.GraphVersion, cfg.WhatsApp.AccessToken, cfg.OutboundTimeout)
		whatsappHook = &api.GraphWebhook{
			Bot:         channel.NewBot(whatsapp.Name, comps.engine, channel.WhatsAppLimits, whatsapp.NewGateway(graph, cfg.WhatsApp.PhoneNumberID)),
			VerifyToken: cfg.WhatsApp.VerifyToken,
		}
		comps.channels = append(comps.channels, whatsapp.Name)
	}

	var notifier reservation.Notifier
	var telegramUpdates api.TelegramUpdateHandler
	if cfg.Telegram.Enabled() {
		timeout := cfg.OutboundTimeout
		if poll := time.Duration(cfg.Telegram.PollTimeout)*time.Second + pollSlack; cfg.Telegram.Polling && poll > timeout {
			timeout = poll
		}
		botAPI, err := telegram.NewAPI(cfg.Telegram.BotToken, cfg.Telegram.APIEndpoint, timeout)
		if err != nil {
			return nil, err
		}
		gateway := telegram.NewGateway(botAPI)
		bot := channel.NewBot(telegram.Name, comps.engine, channel.TelegramLimits, gateway)
		updates := telegram.NewUpdateHandler(botAPI, bot, registry, cfg.Telegram.RegisterSecret)
		if cfg.Telegram.Polling {
			comps.poller = telegram.NewPoller(botAPI, updates, cfg.Telegram.PollTimeout)
		} else {
			telegramUpdates = updates
		}
		notifier = notify.NewBroadcaster(registry, gateway)
		comps.channels = append(comps.channels, telegram.Name)
		log.WithFields(log.Fields{"bot": botAPI.Self.UserName, "polling": cfg.Telegram.Polling}).Info("Telegram bot connected")
	} else {
		log.Warn("Telegram is not configured; reservation notifications are disabled")
	}
	comps.webhooks = api.NewWebhookHandler(messengerHook, whatsappHook, telegramUpdates, cfg.WebhookTimeout)

	// --- Reservations ---
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Kafka.Enabled() {
		publisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		log.WithField("topic", cfg.Kafka.Topic).Info("Reservation events: kafka")
	}
	comps.closers = append(comps.closers, closer{"kafka", publisher.Close})
	comps.reservations = reservation.NewService(airtableClient, cfg.Airtable.ReservationsTable, comps.catalog, notifier, publisher)

	if len(comps.channels) == 0 {
		log.Warn("No chat channel configured; only the REST and gRPC APIs are served")
	}
	return comps, nil
}

// close releases resources in reverse order of acquisition.
func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		cl := c.closers[i]
		if err := cl.close(); err != nil {
			log.WithError(err).WithField("resource", cl.name).Warn("Error closing resource")
		}
	}
	c.closers = nil
}
