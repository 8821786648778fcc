package cli

import (
	"context"
	"flag"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"telegram-session-converter/internal/domain/sessions"
	"telegram-session-converter/internal/infra/logger"
	"telegram-session-converter/internal/infra/pr"
	"telegram-session-converter/internal/infra/telegram/client"
	"telegram-session-converter/internal/infra/telegram/datacenter"
	"telegram-session-converter/internal/infra/telegram/session"
	versioninfo "telegram-session-converter/internal/support/version"
	tgauth "telegram-session-converter/internal/telegram/auth"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

const (
	// formatGotd — файл сессии gotd (JSON). Строкового представления у него нет.
	formatGotd = "gotd"
	formatAuto = "auto"
)

var (
	// ErrUnknownCommand возвращается для имени, которого нет в реестре команд.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidSession — сессия проверена сервером и недействительна.
	ErrInvalidSession = errors.New("session is not valid")

	errNetworkDisabled = errors.New("network commands need API_ID and API_HASH in .env")
)

// Options — зависимости команд.
type Options struct {
	// Client — параметры сетевого клиента (профиль, RPS).
	Client client.Config
	// Checker проверяет сессии на сервере; nil — сетевые команды недоступны.
	Checker sessions.Checker
	// Workers — число параллельных проверок в check.
	Workers int
	// RPS ограничивает частоту проверок в check; 0 — без ограничения.
	RPS float64
}

// Commands исполняет команды конвертера: и разовый запуск из main, и строки shell.
type Commands struct {
	profile sessions.Profile
	client  client.Config
	checker sessions.Checker
	workers int
	rps     float64
}

// NewCommands собирает исполнитель команд.
func NewCommands(opts Options) *Commands {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	return &Commands{
		profile: opts.Client.Profile,
		client:  opts.Client,
		checker: opts.Checker,
		workers: workers,
		rps:     opts.RPS,
	}
}

// Execute выполняет команду args[0] с флагами args[1:].
func (c *Commands) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.Wrap(ErrUnknownCommand, "no command given")
	}
	name, rest := args[0], args[1:]
	logger.Debug("CLI command", zap.String("command", name), zap.Int("args", len(rest)))

	switch name {
	case "convert":
		return c.convert(ctx, rest)
	case "inspect":
		return c.inspect(ctx, rest)
	case "validate":
		return c.validate(ctx, rest)
	case "check":
		return c.check(ctx, rest)
	case "login":
		return c.login(ctx, rest)
	case "version":
		pr.Printf("%s v%s\n", versioninfo.Name, versioninfo.Version)
		return nil
	case "help":
		printCommandHelp()
		return nil
	default:
		return errors.Wrapf(ErrUnknownCommand, "%q", name)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(pr.Stderr())
	return fs
}

// source — откуда читать сессию: строка или путь и ожидаемый формат.
type source struct {
	input string
	from  string
}

func (s *source) bind(fs *flag.FlagSet) {
	fs.StringVar(&s.input, "in", "", "session string or path to a session file")
	fs.StringVar(&s.from, "from", formatAuto, "input format: auto, telethon, pyrogram, gotd")
}

// resolve берёт вход из -in, первого аргумента или спрашивает без эха.
func (s *source) resolve(fs *flag.FlagSet) error {
	if s.input == "" && fs.NArg() > 0 {
		s.input = fs.Arg(0)
	}
	if s.input != "" {
		return nil
	}
	line, err := pr.ReadSecret("Session string or file: ")
	if err != nil {
		return errors.Wrap(err, "read session")
	}
	if line == "" {
		return errors.New("session input is empty")
	}
	s.input = line
	return nil
}

// load читает сессию из строки или файла и возвращает имя распознанного формата.
func (c *Commands) load(ctx context.Context, src source) (*sessions.Manager, string, error) {
	input := strings.TrimSpace(src.input)
	from := strings.ToLower(strings.TrimSpace(src.from))
	if from == "" {
		from = formatAuto
	}
	ext := strings.ToLower(filepath.Ext(input))

	if from == formatGotd || (from == formatAuto && ext == ".json" && isFile(input)) {
		id, err := session.ReadFile(ctx, input)
		if err != nil {
			return nil, "", err
		}
		m, err := sessions.NewManager(id, c.profile)
		if err != nil {
			return nil, "", err
		}
		return m, formatGotd, nil
	}

	format := sessions.FormatUnknown
	if from != formatAuto {
		f, err := sessions.ParseFormat(from)
		if err != nil {
			return nil, "", err
		}
		format = f
	}

	switch {
	case ext == ".txt" && isFile(input):
		raw, err := os.ReadFile(input)
		if err != nil {
			return nil, "", errors.Wrap(err, "read session string file")
		}
		return c.loadString(strings.TrimSpace(string(raw)), format)
	case isFile(input):
		return c.loadFile(ctx, input, format)
	default:
		return c.loadString(input, format)
	}
}

func (c *Commands) loadString(str string, format sessions.Format) (*sessions.Manager, string, error) {
	var (
		m   *sessions.Manager
		err error
	)
	switch format {
	case sessions.FormatTelethon:
		m, err = sessions.FromTelethonString(str, c.profile)
	case sessions.FormatPyrogram:
		m, err = sessions.FromPyrogramString(str, c.profile)
	default:
		m, format, err = sessions.FromString(str, c.profile)
	}
	if err != nil {
		return nil, "", err
	}
	return m, format.String(), nil
}

func (c *Commands) loadFile(ctx context.Context, path string, format sessions.Format) (*sessions.Manager, string, error) {
	var (
		m   *sessions.Manager
		err error
	)
	switch format {
	case sessions.FormatTelethon:
		m, err = sessions.FromTelethonFile(ctx, path, c.profile)
	case sessions.FormatPyrogram:
		m, err = sessions.FromPyrogramFile(ctx, path, c.profile)
	default:
		m, format, err = sessions.FromFile(ctx, path, c.profile)
	}
	if err != nil {
		return nil, "", err
	}
	return m, format.String(), nil
}

// write сохраняет сессию в формате target: в файл out или печатает строку.
func (c *Commands) write(ctx context.Context, m *sessions.Manager, target, out string) error {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == formatGotd {
		if out == "" {
			return errors.New("gotd sessions are written to a file; set -out")
		}
		if err := session.WriteFile(ctx, out, m.Identity(), datacenter.For(c.profile.TestDC)); err != nil {
			return err
		}
		pr.Printf("gotd session written to %s\n", out)
		return nil
	}

	format, err := sessions.ParseFormat(target)
	if err != nil {
		return err
	}
	if out == "" {
		str, err := m.ToString(format)
		if err != nil {
			return err
		}
		pr.Println(str)
		return nil
	}
	if err := m.ToFile(ctx, format, out); err != nil {
		return err
	}
	pr.Printf("%s session written to %s\n", format, out)
	return nil
}

// counterpart — формат по умолчанию для convert без -to.
func counterpart(format string) string {
	if format == sessions.FormatTelethon.String() {
		return sessions.FormatPyrogram.String()
	}
	return sessions.FormatTelethon.String()
}

func (c *Commands) convert(ctx context.Context, args []string) error {
	fs := newFlagSet("convert")
	var src source
	src.bind(fs)
	to := fs.String("to", "", "output format: telethon, pyrogram, gotd (default: the other string format)")
	out := fs.String("out", "", "output file; empty prints the session string")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := src.resolve(fs); err != nil {
		return err
	}

	m, from, err := c.load(ctx, src)
	if err != nil {
		return err
	}
	target := *to
	if strings.TrimSpace(target) == "" {
		target = counterpart(from)
	}
	logger.Info("convert session",
		zap.String("from", from),
		zap.String("to", target),
		zap.String("auth_key_id", m.AuthKeyID()),
	)
	return c.write(ctx, m, target, *out)
}

// report — то, что печатает inspect. AuthKey заполняется только с -show-key.
type report struct {
	Format    string
	DC        int
	Address   string
	AuthKeyID string
	UserID    int64
	IsBot     bool
	AuthKey   string
}

func (c *Commands) inspect(ctx context.Context, args []string) error {
	fs := newFlagSet("inspect")
	var src source
	src.bind(fs)
	showKey := fs.Bool("show-key", false, "print the full auth key in hex")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := src.resolve(fs); err != nil {
		return err
	}

	m, format, err := c.load(ctx, src)
	if err != nil {
		return err
	}
	id := m.Identity()
	rep := report{
		Format:    format,
		DC:        id.DC,
		Address:   "<unknown>",
		AuthKeyID: m.AuthKeyID(),
		UserID:    id.UserID,
		IsBot:     id.IsBot,
	}
	if host, port, err := datacenter.For(c.profile.TestDC).Resolve(id.DC); err == nil {
		rep.Address = net.JoinHostPort(host, strconv.Itoa(port))
	}
	if *showKey {
		rep.AuthKey = m.AuthKeyHex()
	}
	pr.PP(rep)
	return nil
}

func (c *Commands) networkChecker() (sessions.Checker, error) {
	if c.checker == nil {
		return nil, errNetworkDisabled
	}
	return c.checker, nil
}

func (c *Commands) validate(ctx context.Context, args []string) error {
	fs := newFlagSet("validate")
	var src source
	src.bind(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	checker, err := c.networkChecker()
	if err != nil {
		return err
	}
	if err := src.resolve(fs); err != nil {
		return err
	}

	m, _, err := c.load(ctx, src)
	if err != nil {
		return err
	}
	if !m.Validate(ctx, checker) {
		pr.Println("Session is NOT valid")
		return ErrInvalidSession
	}
	acc, _ := m.Account()
	pr.Printf("Session is valid: %s\n", describeAccount(acc))
	return nil
}

// login авторизует новую сессию по телефону и сохраняет её в выбранном формате.
func (c *Commands) login(ctx context.Context, args []string) error {
	fs := newFlagSet("login")
	phone := fs.String("phone", "", "phone number; asked interactively when empty")
	to := fs.String("to", sessions.FormatTelethon.String(), "output format: telethon, pyrogram, gotd")
	out := fs.String("out", "", "output file; empty prints the session string")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !c.profile.HasCredentials() {
		return errNetworkDisabled
	}
	if err := pr.Init(); err != nil {
		return errors.Wrap(err, "init terminal")
	}

	cl, err := client.New(ctx, c.client, nil)
	if err != nil {
		return err
	}
	var self *tg.User
	err = cl.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(tgauth.NewTerminalAuthenticator(*phone), auth.SendCodeOptions{})
		if err := cl.Auth().IfNecessary(ctx, flow); err != nil {
			return errors.Wrap(err, "auth")
		}
		u, err := cl.Self(ctx)
		if err != nil {
			return errors.Wrap(err, "get self")
		}
		self = u
		return nil
	})
	if err != nil {
		return err
	}

	id, err := cl.Identity(ctx)
	if err != nil {
		return err
	}
	id.UserID, id.IsBot = self.ID, self.Bot
	m, err := sessions.NewManager(id, c.profile)
	if err != nil {
		return err
	}
	acc := sessions.Account{
		ID:        self.ID,
		Username:  self.Username,
		FirstName: self.FirstName,
		LastName:  self.LastName,
		Bot:       self.Bot,
	}
	logger.Info("logged in", zap.Int64("user_id", self.ID), zap.Int("dc", id.DC))
	pr.Printf("Logged in as %s\n", describeAccount(acc))
	return c.write(ctx, m, *to, *out)
}

// describeAccount — короткая подпись владельца: имя, username, id.
func describeAccount(acc sessions.Account) string {
	fullname := strings.TrimSpace(strings.Join([]string{acc.FirstName, acc.LastName}, " "))
	if fullname == "" {
		fullname = "<unknown>"
	}
	kind := ""
	if acc.Bot {
		kind = " [bot]"
	}
	if acc.Username != "" {
		return fullname + " (@" + acc.Username + "), id=" + strconv.FormatInt(acc.ID, 10) + kind
	}
	return fullname + ", id=" + strconv.FormatInt(acc.ID, 10) + kind
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
