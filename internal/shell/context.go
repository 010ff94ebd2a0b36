package shell

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/app"
	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/registry"
	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/shell/internal/providers/broadcast"
	"github.com/GriffinCanCode/AgentOS/shell/internal/providers/http/client"
	"github.com/GriffinCanCode/AgentOS/shell/internal/providers/storage"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
)

var (
	ErrAlreadyInitialized = errors.New("shell context already initialized")
	ErrNotInitialized     = errors.New("shell context not initialized")
	ErrMissingDependency  = errors.New("missing shell dependency")
)

// Options are the process-wide collaborators of a tab
type Options struct {
	Config    *config.Config
	Registry  *registry.Registry
	Local     storage.Backend // shared by every tab
	Broadcast broadcast.Bus
	Document  []byte // shell HTML; nil means an empty document
	HTTP      *client.Client
	Native    app.NativeImporter
	Visible   bool
	Clock     clockwork.Clock
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger
}

// Context is the process-wide state of one tab. It is initialized once;
// page generations read it but never replace it.
type Context struct {
	mu          sync.Mutex
	initialized bool

	cfg        *config.Config
	registry   *registry.Registry
	tab        id.TabID
	local      *storage.Tab
	session    *storage.Tab
	broadcast  broadcast.Bus
	document   []byte
	http       *client.Client
	native     app.NativeImporter
	events     *Bus
	visibility *Visibility
	clock      clockwork.Clock
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

// Init wires the context. A second call fails with ErrAlreadyInitialized
// and leaves the first wiring untouched.
func (c *Context) Init(opts Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return ErrAlreadyInitialized
	}
	switch {
	case opts.Config == nil:
		return fmt.Errorf("%w: config", ErrMissingDependency)
	case opts.Registry == nil:
		return fmt.Errorf("%w: registry", ErrMissingDependency)
	case opts.Local == nil:
		return fmt.Errorf("%w: local storage", ErrMissingDependency)
	case opts.Broadcast == nil:
		return fmt.Errorf("%w: broadcast bus", ErrMissingDependency)
	}

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.HTTP == nil {
		opts.HTTP = client.New(client.Options{Name: "shell", Logger: opts.Logger.Named("http")})
	}
	if opts.Native == nil {
		opts.Native = app.NewModuleTable()
	}

	c.tab = id.NewTabID()
	c.logger = opts.Logger.With(zap.String("tab", c.tab.String()))
	c.cfg = opts.Config
	c.registry = opts.Registry
	c.local = storage.ForTab(opts.Local, c.tab, c.logger.Named("storage"))
	// Session storage belongs to this tab alone but survives reloads
	c.session = storage.ForTab(storage.NewMemory(), c.tab, c.logger.Named("session"))
	c.broadcast = opts.Broadcast
	c.document = opts.Document
	c.http = opts.HTTP
	c.native = opts.Native
	c.events = NewBus(c.logger.Named("events"))
	c.visibility = NewVisibility(opts.Visible)
	c.clock = opts.Clock
	c.metrics = opts.Metrics
	c.initialized = true

	c.metrics.SetRegistryApps(c.registry.Len())
	c.logger.Info("Shell context initialized",
		zap.String("env", string(c.Env())),
		zap.Int("apps", c.registry.Len()))
	return nil
}

// Initialized reports whether Init succeeded
func (c *Context) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

func (c *Context) Config() *config.Config { return c.cfg }
func (c *Context) Env() types.Env { return c.registry.Env() }
func (c *Context) Registry() *registry.Registry { return c.registry }
func (c *Context) TabID() id.TabID { return c.tab }
func (c *Context) Local() *storage.Tab { return c.local }
func (c *Context) Session() *storage.Tab { return c.session }
func (c *Context) Events() *Bus { return c.events }
func (c *Context) Visibility() *Visibility { return c.visibility }
func (c *Context) HTTP() *client.Client { return c.http }
func (c *Context) Metrics() *monitoring.Metrics { return c.metrics }
func (c *Context) Logger() *zap.Logger { return c.logger }
