package tutor

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/grovetools/socratic/errors"
	"github.com/grovetools/socratic/logging"
	"github.com/grovetools/socratic/pkg/completion"
	"github.com/sirupsen/logrus"
)

// ReplyKind selects how a reply is delivered.
type ReplyKind int

const (
	// ReplySend posts a new message.
	ReplySend ReplyKind = iota
	// ReplyEdit replaces the message whose button was pressed. Without a
	// pressed button it behaves like ReplySend.
	ReplyEdit
	// ReplyAlert answers the pressed button with a pop-up.
	ReplyAlert
)

// Reply is one outbound message.
type Reply struct {
	Kind     ReplyKind
	Text     string
	Keyboard Keyboard
	HTML     bool
}

// Responder delivers replies to the user whose update is being handled.
type Responder interface {
	Send(ctx context.Context, r Reply) error
	Typing(ctx context.Context) error
}

// PhotoFetcher downloads the photo attached to an update.
type PhotoFetcher func(ctx context.Context) ([]byte, error)

// Options tunes a Service.
type Options struct {
	VisionModel  string
	HistoryLimit int
	Now          func() time.Time
}

// Service handles user input for all sessions.
type Service struct {
	store     Store
	locker    *Locker
	completer completion.Completer
	prompts   *PromptSource
	opts      Options
	logger    *logrus.Entry
}

// NewService wires a Service. prompts may be nil for the built-in prompt.
func NewService(store Store, completer completion.Completer, prompts *PromptSource, opts Options) *Service {
	if prompts == nil {
		prompts = &PromptSource{text: DefaultSystemPrompt}
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:     store,
		locker:    NewLocker(),
		completer: completer,
		prompts:   prompts,
		opts:      opts,
		logger:    logging.NewLogger("tutor"),
	}
}

// input is the trigger being applied and how its replies are presented.
type input struct {
	event Event
	text  string
	// edit replies by editing the pressed message where the original flow did.
	edit bool
	// intro prefixes the first tutoring reply of a task.
	intro string
}

// withSession holds the user's lock around load, fn and save. The session is
// saved only when fn succeeds, so a failed reply leaves the stored state as it
// was and the user can repeat the input.
func (s *Service) withSession(ctx context.Context, userID int64, fn func(*Session) error) error {
	unlock := s.locker.Lock(userID)
	defer unlock()

	sess, err := s.store.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	switch sess.State {
	case StateChecking, StateCompleted, StateExamMode:
		sess.State = StateWaitingTask
	}

	if err := fn(sess); err != nil {
		return err
	}
	return s.store.Save(ctx, sess)
}

// Session returns a snapshot of the user's session.
func (s *Service) Session(ctx context.Context, userID int64) (*Session, error) {
	unlock := s.locker.Lock(userID)
	defer unlock()
	return s.store.GetOrCreate(ctx, userID)
}

// HandleText processes a free-text message.
func (s *Service) HandleText(ctx context.Context, userID int64, text string, r Responder) error {
	return s.withSession(ctx, userID, func(sess *Session) error {
		in := input{event: TextEvent(sess.State), text: text}
		if in.event == EventTaskReceived {
			in.intro = "📝 Задача принята!\n\n"
		}
		return s.apply(ctx, sess, in, r)
	})
}

// HandleCommand processes a slash command given without the slash.
func (s *Service) HandleCommand(ctx context.Context, userID int64, command string, r Responder) error {
	return s.withSession(ctx, userID, func(sess *Session) error {
		switch command {
		case "start":
			return r.Send(ctx, Reply{Text: welcomeText, Keyboard: MainMenu()})
		case "reset":
			if err := s.apply(ctx, sess, input{event: EventReset}, r); err != nil {
				return err
			}
			return r.Send(ctx, Reply{Text: resetText})
		case "submit":
			if sess.State != StateSolving {
				return r.Send(ctx, Reply{Text: submitGuidanceText})
			}
			return s.apply(ctx, sess, input{event: EventSubmitRequested}, r)
		case "stats":
			return r.Send(ctx, Reply{Text: StatisticsText(sess)})
		case "hint":
			if sess.State != StateSolving {
				return r.Send(ctx, Reply{Text: hintGuidanceText})
			}
			return s.apply(ctx, sess, input{event: EventHintRequested}, r)
		case "keyboard":
			return r.Send(ctx, Reply{Text: categoryPromptText, Keyboard: CategoryKeyboard()})
		case "help":
			return r.Send(ctx, Reply{Text: HelpText, Keyboard: BackKeyboard()})
		default:
			return r.Send(ctx, Reply{Text: unknownCommandText})
		}
	})
}

// HandleCallback processes an inline button press.
func (s *Service) HandleCallback(ctx context.Context, userID int64, data string, r Responder) error {
	return s.withSession(ctx, userID, func(sess *Session) error {
		switch {
		case strings.HasPrefix(data, PrefixCategory):
			category := strings.TrimPrefix(data, PrefixCategory)
			return r.Send(ctx, Reply{Kind: ReplyEdit, Text: fmt.Sprintf("Символы (%s):", category), Keyboard: SymbolKeyboard(category)})
		case strings.HasPrefix(data, PrefixSymbol):
			return r.Send(ctx, Reply{Kind: ReplyEdit, Text: "Скопируй символ: " + strings.TrimPrefix(data, PrefixSymbol)})
		case strings.HasPrefix(data, PrefixDifficulty):
			level := strings.TrimPrefix(data, PrefixDifficulty)
			if _, ok := difficultyLabels[level]; !ok {
				return r.Send(ctx, Reply{Kind: ReplyAlert, Text: unsupportedDataText})
			}
			sess.Difficulty = level
			return r.Send(ctx, Reply{Kind: ReplyEdit, Text: fmt.Sprintf("✅ Уровень сложности изменен на: %s\n\nОтправь задачу для начала!", level)})
		}

		switch data {
		case CallbackBackMenu:
			return r.Send(ctx, Reply{Kind: ReplyEdit, Text: categoryBackText, Keyboard: CategoryKeyboard()})
		case CallbackStartSolving:
			if err := s.apply(ctx, sess, input{event: EventStartSolving}, r); err != nil {
				return err
			}
			return r.Send(ctx, Reply{Kind: ReplyEdit, Text: askTaskText})
		case CallbackShowStats:
			return r.Send(ctx, Reply{Kind: ReplyEdit, Text: StatisticsText(sess), Keyboard: BackKeyboard()})
		case CallbackSettings:
			return r.Send(ctx, Reply{Kind: ReplyEdit, Text: settingsText, Keyboard: SettingsKeyboard(sess)})
		case CallbackHelp:
			return r.Send(ctx, Reply{Kind: ReplyEdit, Text: HelpText, Keyboard: BackKeyboard()})
		case CallbackDiffMenu:
			return r.Send(ctx, Reply{Kind: ReplyEdit, Text: difficultyMenuText, Keyboard: DifficultyKeyboard()})
		case CallbackToggleExam:
			sess.ExamMode = !sess.ExamMode
			text := "🎓 Режим экзамена выключен\n\nОбычный режим с полными подсказками"
			if sess.ExamMode {
				text = "🎓 Режим экзамена включен\n\nВ этом режиме подсказки ограничены"
			}
			return r.Send(ctx, Reply{Kind: ReplyEdit, Text: text})
		case CallbackToggleMemes:
			sess.MemesEnabled = !sess.MemesEnabled
			text := "🎭 Мемы выключены\n\nМемы отключены. Серьезный режим."
			if sess.MemesEnabled {
				text = "🎭 Мемы включены\n\nБудешь получать веселые мемы за решенные задачи!"
			}
			return r.Send(ctx, Reply{Kind: ReplyEdit, Text: text})
		case CallbackSubmit:
			if sess.State != StateSolving {
				return r.Send(ctx, Reply{Kind: ReplyAlert, Text: submitGuidanceText})
			}
			return s.apply(ctx, sess, input{event: EventSubmitRequested, edit: true}, r)
		case CallbackHint:
			if sess.State != StateSolving {
				return r.Send(ctx, Reply{Kind: ReplyAlert, Text: hintAlertText})
			}
			return s.apply(ctx, sess, input{event: EventHintRequested}, r)
		case CallbackConfirmTask:
			task, ok := sess.TakePendingTask()
			if !ok {
				return r.Send(ctx, Reply{Kind: ReplyEdit, Text: noPendingTaskText})
			}
			in := input{event: EventTaskReceived, text: task, edit: true, intro: "📝 Отлично! Начинаем решать!\n\n"}
			if err := s.apply(ctx, sess, in, r); err != nil {
				if errors.Is(err, errors.ErrCodeInvalidTransition) {
					return r.Send(ctx, Reply{Kind: ReplyAlert, Text: submitGuidanceText})
				}
				return err
			}
			return nil
		case CallbackEditTask, CallbackRetryPhoto:
			sess.PendingTask = nil
			if err := s.apply(ctx, sess, input{event: EventReset}, r); err != nil {
				return err
			}
			text := editTaskText
			if data == CallbackRetryPhoto {
				text = retryPhotoText
			}
			return r.Send(ctx, Reply{Kind: ReplyEdit, Text: text})
		default:
			return r.Send(ctx, Reply{Kind: ReplyAlert, Text: unsupportedDataText})
		}
	})
}

// HandlePhoto transcribes a photographed task and asks for confirmation.
func (s *Service) HandlePhoto(ctx context.Context, userID int64, fetch PhotoFetcher, r Responder) error {
	return s.withSession(ctx, userID, func(sess *Session) error {
		if !AcceptsPhoto(sess.State) {
			return r.Send(ctx, Reply{Text: photoRejectedText})
		}
		if err := r.Send(ctx, Reply{Text: photoReceivedText}); err != nil {
			return err
		}
		s.typing(ctx, r)

		data, err := fetch(ctx)
		if err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to download photo")
			return r.Send(ctx, Reply{Text: photoFailedText})
		}

		rec := Recognize(ctx, s.completer, s.opts.VisionModel, base64.StdEncoding.EncodeToString(data))
		s.logOutcome(userID, "recognition", rec.Outcome, rec.Err)
		if !rec.Found {
			return r.Send(ctx, Reply{Text: recognitionFailedText})
		}

		task := rec.Text
		sess.PendingTask = &task
		return r.Send(ctx, Reply{
			Text:     "📝 Я распознал такую задачу:\n\n<code>" + html.EscapeString(task) + "</code>\n\nВсе верно?",
			Keyboard: ConfirmTaskKeyboard(),
			HTML:     true,
		})
	})
}

// apply runs a transition and performs its effects in order.
func (s *Service) apply(ctx context.Context, sess *Session, in input, r Responder) error {
	next, effects, err := Transition(sess.State, in.event)
	if err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"user_id": sess.UserID,
		"from":    sess.State,
		"to":      next,
		"event":   in.event,
	}).Debug("Session transition")
	sess.State = next

	var verdict Verification
	for _, effect := range effects {
		switch effect {
		case EffectBeginTask:
			sess.BeginTask(in.text, s.opts.Now())
		case EffectAppendTurn:
			sess.AddTurn(completion.RoleUser, in.text)
		case EffectAppendHint:
			sess.AddTurn(completion.RoleUser, hintTurn)
			sess.Stats.TotalHints++
		case EffectComplete:
			s.typing(ctx, r)
			reply := Respond(ctx, s.completer, s.prompts.System(), sess)
			s.logOutcome(sess.UserID, "tutoring", reply.Outcome, reply.Err)
			if err := r.Send(ctx, s.tutoringReply(in, reply.Text)); err != nil {
				return err
			}
		case EffectPromptFinal:
			kind := ReplySend
			if in.edit {
				kind = ReplyEdit
			}
			if err := r.Send(ctx, Reply{Kind: kind, Text: submitPromptText}); err != nil {
				return err
			}
		case EffectVerify:
			if err := r.Send(ctx, Reply{Text: checkingText}); err != nil {
				return err
			}
			s.typing(ctx, r)
			verdict = Verify(ctx, s.completer, sess.CurrentTask, in.text)
			s.logOutcome(sess.UserID, "verification", verdict.Outcome, verdict.Err)
		case EffectRecordResult:
			now := s.opts.Now()
			minutes := sess.ElapsedMinutes(now)
			sess.RecordResult(verdict.Score, minutes, now, s.opts.HistoryLimit)
			if err := r.Send(ctx, Reply{Text: ResultText(sess.CurrentTask, verdict, minutes), Keyboard: ResultKeyboard()}); err != nil {
				return err
			}
		case EffectMeme:
			if !sess.MemesEnabled {
				continue
			}
			sess.Stats.TotalMemes++
			s.typing(ctx, r)
			meme := GenerateMeme(ctx, s.completer, verdict.Score, sess.CurrentTask, sess.Difficulty)
			s.logOutcome(sess.UserID, "meme", meme.Outcome, meme.Err)
			// The result is already delivered; a lost meme must not undo it.
			if err := r.Send(ctx, Reply{Text: MemeEmoji(verdict.Score) + " " + meme.Text}); err != nil {
				s.logger.WithError(err).WithField("user_id", sess.UserID).Warn("Failed to send meme")
			}
		case EffectClearTask:
			sess.ClearTask()
		}
	}
	return nil
}

func (s *Service) tutoringReply(in input, text string) Reply {
	switch in.event {
	case EventTaskReceived:
		kind := ReplySend
		if in.edit {
			kind = ReplyEdit
		}
		return Reply{Kind: kind, Text: in.intro + text, Keyboard: SolvingKeyboard(true)}
	case EventHintRequested:
		return Reply{Text: "💡 " + text}
	default:
		return Reply{Text: text, Keyboard: SolvingKeyboard(false)}
	}
}

// typing is best-effort.
func (s *Service) typing(ctx context.Context, r Responder) {
	if err := r.Typing(ctx); err != nil {
		s.logger.WithError(err).Debug("Failed to send typing action")
	}
}

func (s *Service) logOutcome(userID int64, what string, outcome errors.Outcome, err error) {
	if outcome == errors.OutcomeOK {
		return
	}
	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"outcome": outcome,
		"code":    errors.GetCode(err),
	}).WithError(err).Warnf("%s fell back to canned reply", what)
}
