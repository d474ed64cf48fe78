package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	rtsup "pishocker/internal/runtime/supervisor"
	"pishocker/internal/transport"
	logx "pishocker/pkg/logx"
)

type Config struct {
	Token string
}

// Intents requested on the gateway. Message content is not needed: the trigger
// only looks at who posted where.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages

type Adapter struct {
	cfg Config
	log logx.Logger

	dg *discordgo.Session

	handler atomic.Value // stores transport.MessageHandler
	selfID  atomic.Value // stores string

	runMu   sync.Mutex
	running bool
	removes []func()
	sup     *rtsup.Supervisor
}

var (
	_ transport.Adapter      = (*Adapter)(nil)
	_ transport.Sender       = (*Adapter)(nil)
	_ transport.MemberLookup = (*Adapter)(nil)
)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("discord token is empty")
	}
	token = strings.TrimPrefix(token, "Bot ")
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	dg.Identify.Intents = Intents
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log, dg: dg}
	var nilHandler transport.MessageHandler
	a.handler.Store(nilHandler)
	a.selfID.Store("")
	return a, nil
}

// Session exposes the underlying discordgo session.
func (a *Adapter) Session() *discordgo.Session { return a.dg }

// Start registers the MESSAGE_CREATE handler and opens the gateway.
// h runs synchronously on discordgo's event goroutine and must not block.
func (a *Adapter) Start(ctx context.Context, h transport.MessageHandler) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		a.handler.Store(h)
		return nil
	}
	a.handler.Store(h)
	a.removes = append(a.removes,
		a.dg.AddHandler(a.onReady),
		a.dg.AddHandler(a.onMessageCreate),
	)
	if err := a.dg.Open(); err != nil {
		for _, rm := range a.removes {
			rm()
		}
		a.removes = nil
		return fmt.Errorf("open discord gateway: %w", err)
	}
	a.running = true

	a.sup = rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(a.log.With(logx.String("comp", "discord.adapter"))),
		rtsup.WithCancelOnError(false),
	)
	// Close the gateway if the parent context goes away before Stop is called.
	a.sup.Go0("discord.close_on_cancel", func(c context.Context) {
		<-c.Done()
		a.closeSession()
	})
	a.log.Info("gateway opened")
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	wasRunning := a.running
	a.running = false
	removes := a.removes
	a.removes = nil
	var nilHandler transport.MessageHandler
	a.handler.Store(nilHandler)
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	for _, rm := range removes {
		rm()
	}
	err := a.closeSession()
	if sup != nil {
		if werr := sup.Stop(ctx); werr != nil && err == nil && !errors.Is(werr, context.Canceled) {
			a.log.Warn("discord stop timed out", logx.Err(werr))
		}
	}
	a.log.Info("gateway closed")
	return err
}

func (a *Adapter) closeSession() error {
	if a.dg == nil {
		return nil
	}
	if err := a.dg.Close(); err != nil {
		return fmt.Errorf("close discord gateway: %w", err)
	}
	return nil
}

func (a *Adapter) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r == nil || r.User == nil {
		return
	}
	a.selfID.Store(r.User.ID)
	a.log.Info("discord ready", logx.String("user", r.User.Username), logx.Int("guilds", len(r.Guilds)))
}

func (a *Adapter) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil {
		return
	}
	if self, _ := a.selfID.Load().(string); self != "" && m.Author.ID == self {
		return
	}
	h, _ := a.handler.Load().(transport.MessageHandler)
	if h == nil {
		return
	}
	h(toEvent(m.Message))
}

func toEvent(m *discordgo.Message) transport.MessageEvent {
	ev := transport.MessageEvent{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Message: transport.Message{
			ID:      m.ID,
			Type:    int(m.Type),
			Content: m.Content,
		},
	}
	if u := m.Author; u != nil {
		ev.Message.Author = transport.Author{
			ID:       u.ID,
			Username: u.Username,
			Bot:      u.Bot,
		}
		if u.GlobalName != "" {
			gn := u.GlobalName
			ev.Message.Author.GlobalName = &gn
		}
	}
	return ev
}

// MemberNickname looks up a guild nickname in the session state cache.
// It never calls the REST API.
func (a *Adapter) MemberNickname(guildID, userID string) (string, bool) {
	if guildID == "" || userID == "" || a.dg == nil || a.dg.State == nil {
		return "", false
	}
	mem, err := a.dg.State.Member(guildID, userID)
	if err != nil || mem == nil || mem.Nick == "" {
		return "", false
	}
	return mem.Nick, true
}

func (a *Adapter) SendText(ctx context.Context, channelID string, text string) error {
	if strings.TrimSpace(channelID) == "" {
		return errors.New("discord channel id is empty")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := a.dg.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send discord message: %w", err)
	}
	return nil
}
