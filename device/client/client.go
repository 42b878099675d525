// Package client implements the media-fetching network client actor: a
// single-threaded event loop dispatching controller commands and
// inbound packets, fragment-level send/retry bookkeeping, and the
// application logic that turns server replies into a resolved bundle.
package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/relaynet/mediaclient/control"
	"github.com/relaynet/mediaclient/core/appmsg"
	"github.com/relaynet/mediaclient/core/assembler"
	"github.com/relaynet/mediaclient/core/cache"
	"github.com/relaynet/mediaclient/core/fileassembler"
	"github.com/relaynet/mediaclient/core/node"
	"github.com/relaynet/mediaclient/core/wire"
	"github.com/relaynet/mediaclient/device/router"
	"github.com/relaynet/mediaclient/device/servers"
)

// Default tuning values, all overridable via Config (spec §9 Open
// Questions 2 and 3).
const (
	DefaultBootSettleDelay     = 2 * time.Second
	DefaultRefloodSettleDelay  = 10 * time.Millisecond
	DefaultRetryFloodThreshold = 5
	DefaultRetryCrashThreshold = 10
)

// Config configures a Client.
type Config struct {
	// SelfID is this node's identity.
	SelfID node.ID

	// FragmentChunkSize is passed to the assembler. Default:
	// assembler.DefaultChunkSize.
	FragmentChunkSize int

	// RefAttr configures fileassembler reference extraction. Default: "src".
	RefAttr string

	// BootSettleDelay is how long Run sleeps after the initial boot-time
	// flood before entering the event loop, letting flood responses
	// percolate. Default: 2s.
	BootSettleDelay time.Duration

	// RefloodSettleDelay is how long floodNetwork sleeps after any
	// subsequent (non-boot) flood. Default: 10ms.
	RefloodSettleDelay time.Duration

	// RetryFloodThreshold is the nack retry count beyond which a reflood
	// is triggered before resend. Default: 5.
	RetryFloodThreshold int

	// RetryCrashThreshold is the nack retry count beyond which the nack
	// source is treated as crashed. Default: 10.
	RetryCrashThreshold int

	// PeriodicFloodInterval, if nonzero, runs an additional re-flood on
	// a ticker alongside the boot flood and nack-driven reflood. Zero
	// (default) disables it.
	PeriodicFloodInterval time.Duration

	// Logger for client events. Falls back to slog.Default() if nil.
	Logger *slog.Logger

	// nowFn is the clock source, defaulting to time.Now. The
	// periodic-reflood ticker does not read it.
	nowFn func() time.Time
}

// Client is the media-fetching network client actor.
type Client struct {
	cfg Config
	log *slog.Logger

	router        *router.Router
	cache         *cache.Cache
	assembler     *assembler.Assembler
	fileAssembler *fileassembler.FileAssembler
	mediaServers  *servers.Set

	control control.Link
	packets <-chan *wire.Packet

	mu        sync.Mutex
	neighbors map[node.ID]chan<- *wire.Packet

	sessionMu   sync.Mutex
	nextSession uint64
}

// New constructs a Client. packets is the single inbound packet stream
// (spec §6); link is the controller command/event contract.
func New(cfg Config, link control.Link, packets <-chan *wire.Packet) *Client {
	if cfg.BootSettleDelay <= 0 {
		cfg.BootSettleDelay = DefaultBootSettleDelay
	}
	if cfg.RefloodSettleDelay <= 0 {
		cfg.RefloodSettleDelay = DefaultRefloodSettleDelay
	}
	if cfg.RetryFloodThreshold <= 0 {
		cfg.RetryFloodThreshold = DefaultRetryFloodThreshold
	}
	if cfg.RetryCrashThreshold <= 0 {
		cfg.RetryCrashThreshold = DefaultRetryCrashThreshold
	}
	if cfg.nowFn == nil {
		cfg.nowFn = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.WithGroup("client")

	return &Client{
		cfg:           cfg,
		log:           logger,
		router:        router.New(router.Config{SelfID: cfg.SelfID, Logger: logger}),
		cache:         cache.New(),
		assembler:     assembler.New(cfg.FragmentChunkSize),
		fileAssembler: fileassembler.New(fileassembler.Config{RefAttr: cfg.RefAttr, Logger: logger}),
		mediaServers:  servers.NewSet(),
		control:       link,
		packets:       packets,
		neighbors:     make(map[node.ID]chan<- *wire.Packet),
	}
}

// Run drives the event loop until ctx is cancelled. It performs the
// initial boot-time flood, then enters the biased select: on every
// iteration it first drains any immediately-ready controller command,
// falling back to a select across commands, packets, and ctx.Done().
// An optional periodic-reflood goroutine runs alongside it, joined via
// errgroup so either one's termination/cancellation ends Run.
func (c *Client) Run(ctx context.Context) error {
	c.floodNetwork(true)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.eventLoop(ctx) })
	if c.cfg.PeriodicFloodInterval > 0 {
		g.Go(func() error { return c.periodicReflood(ctx) })
	}
	return g.Wait()
}

func (c *Client) eventLoop(ctx context.Context) error {
	commands := c.control.Commands()
	for {
		select {
		case cmd, ok := <-commands:
			if ok {
				c.handleCommand(cmd)
			}
			continue
		default:
		}

		select {
		case cmd, ok := <-commands:
			if ok {
				c.handleCommand(cmd)
			}
		case pkt, ok := <-c.packets:
			if ok {
				c.handlePacket(pkt)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Client) periodicReflood(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.PeriodicFloodInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.floodNetwork(false)
		}
	}
}

// nextSessionID returns a fresh, monotonically increasing session id
// for an originated message.
func (c *Client) nextSessionID() uint64 {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	id := c.nextSession
	c.nextSession++
	return id
}

// emit forwards ev to the controller link.
func (c *Client) emit(ev control.Event) {
	c.control.Emit(ev)
}

// addNeighbor is used by tests and AddSender handling; kept separate so
// other files can add neighbors without going through the command path.
func (c *Client) addNeighbor(id node.ID, ch chan<- *wire.Packet) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.neighbors[id]; exists {
		return false
	}
	c.neighbors[id] = ch
	return true
}

func (c *Client) removeNeighbor(id node.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.neighbors[id]; !exists {
		return false
	}
	delete(c.neighbors, id)
	return true
}

func (c *Client) neighborChannel(id node.ID) (chan<- *wire.Packet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.neighbors[id]
	return ch, ok
}

func (c *Client) neighborIDs() []node.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]node.ID, 0, len(c.neighbors))
	for id := range c.neighbors {
		ids = append(ids, id)
	}
	return ids
}

// clientRequestFor is a tiny helper shared by command.go to turn a
// client ask command into the appmsg request it encodes.
func clientRequestFor(cmd control.Command) (appmsg.ClientRequest, bool) {
	switch c := cmd.(type) {
	case control.AskServerType:
		return appmsg.GetServerType{}, true
	case control.AskFilesList:
		return appmsg.GetFilesList{}, true
	case control.AskForFile:
		return appmsg.GetFile{FileID: c.FileID}, true
	default:
		return nil, false
	}
}
