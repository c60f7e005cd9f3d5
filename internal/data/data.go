package data

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/devricklin/offline-responder/internal/biz/repo"
	"github.com/devricklin/offline-responder/internal/infra/openai"
	"github.com/devricklin/offline-responder/internal/infra/telegram"
)

// Options configures repository construction
type Options struct {
	ConfigPath    string
	TemplatesPath string
	StatePath     string
	HistoryDBPath string // Empty disables the history archive

	TelegramToken   string // Overrides credentials.telegram.token
	TelegramBaseURL string
	Telegram        TelegramOptions
	RequestTimeout  time.Duration

	Classifier       *openai.Client // Optional
	ClassifierPrompt string
}

// Repositories contains all repositories
type Repositories struct {
	Config     repo.ConfigRepo
	Templates  repo.TemplateRepo
	State      repo.StateRepo
	History    repo.HistoryRepo    // nil when disabled
	Classifier repo.ClassifierRepo // nil when disabled
	Telegram   repo.ChannelRepo
	Email      repo.ChannelRepo

	TelegramClient *telegram.Client
}

// NewRepositories creates all repositories
func NewRepositories(opts Options, log *zap.Logger) (*Repositories, error) {
	if log == nil {
		log = zap.NewNop()
	}

	configRepo, err := NewConfigRepo(opts.ConfigPath, log.Named("config"))
	if err != nil {
		return nil, err
	}
	templateRepo, err := NewTemplateRepo(opts.TemplatesPath, log.Named("templates"))
	if err != nil {
		return nil, err
	}

	var historyRepo repo.HistoryRepo
	if opts.HistoryDBPath != "" {
		historyRepo, err = NewHistoryRepo(opts.HistoryDBPath)
		if err != nil {
			return nil, err
		}
	}

	token := opts.TelegramToken
	if token == "" {
		token = configRepo.GetString("credentials.telegram.token", "")
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	// Leave headroom over the long-poll timeout
	tgClient := telegram.NewClient(&http.Client{Timeout: timeout + opts.Telegram.PollTimeout}, opts.TelegramBaseURL, token)

	var classifier repo.ClassifierRepo
	if opts.Classifier != nil {
		classifier = NewClassifierRepo(opts.Classifier, opts.ClassifierPrompt, log.Named("classifier"))
	}

	return &Repositories{
		Config:         configRepo,
		Templates:      templateRepo,
		State:          NewStateRepo(opts.StatePath, log.Named("state")),
		History:        historyRepo,
		Classifier:     classifier,
		Telegram:       NewTelegramChannel(tgClient, configRepo, opts.Telegram, SleepContext, log.Named("telegram")),
		Email:          NewEmailChannel(log.Named("email")),
		TelegramClient: tgClient,
	}, nil
}

// Close releases the history database
func (r *Repositories) Close() error {
	if r.History != nil {
		return r.History.Close()
	}
	return nil
}
