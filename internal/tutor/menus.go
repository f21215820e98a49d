package tutor

import (
	"fmt"
	"strings"
)

// Callback payloads carried by inline buttons.
const (
	CallbackStartSolving = "start_solving"
	CallbackShowStats    = "show_stats"
	CallbackSettings     = "settings"
	CallbackHelp         = "help"
	CallbackDiffMenu     = "diff_menu"
	CallbackToggleExam   = "toggle_exam"
	CallbackToggleMemes  = "toggle_memes"
	CallbackSubmit       = "submit_answer"
	CallbackConfirmTask  = "confirm_task"
	CallbackEditTask     = "edit_task"
	CallbackRetryPhoto   = "retry_photo"
	CallbackHint         = "hint"
	CallbackBackMenu     = "back_menu"

	PrefixDifficulty = "difficulty_"
	PrefixCategory   = "cat_"
	PrefixSymbol     = "sym_"
)

// Button is an inline keyboard button.
type Button struct {
	Text string
	Data string
}

// Keyboard is an inline keyboard, one slice per row.
type Keyboard [][]Button

func row(buttons ...Button) []Button { return buttons }

// SymbolCategory is a group on the math symbol keyboard.
type SymbolCategory struct {
	Name    string
	Label   string
	Symbols []string
}

// SymbolCategories lists the math symbol groups in menu order.
var SymbolCategories = []SymbolCategory{
	{Name: "basic", Label: "Базовые", Symbols: []string{"√", "²", "³", "∫", "π", "±", "÷", "×"}},
	{Name: "greek", Label: "Греческие", Symbols: []string{"α", "β", "γ", "δ", "θ", "λ", "μ", "σ"}},
	{Name: "calculus", Label: "Матанализ", Symbols: []string{"∑", "∏", "∂", "∇", "∞", "≈", "≠", "≤", "≥"}},
	{Name: "geometry", Label: "Геометрия", Symbols: []string{"∠", "°", "⊥", "∥", "△", "□", "○"}},
}

var difficultyLabels = map[string]string{
	DifficultyEasy:   "🟢 Легкий",
	DifficultyMedium: "🟡 Средний",
	DifficultyHard:   "🔴 Сложный",
}

// MainMenu is shown by /start.
func MainMenu() Keyboard {
	return Keyboard{
		row(Button{"📚 Начать решать", CallbackStartSolving}),
		row(Button{"📊 Моя статистика", CallbackShowStats}),
		row(Button{"⚙️ Настройки", CallbackSettings}),
		row(Button{"❓ Помощь", CallbackHelp}),
	}
}

// SolvingKeyboard accompanies tutoring replies. The restart button is only
// offered with the first reply of a task.
func SolvingKeyboard(withRestart bool) Keyboard {
	kb := Keyboard{
		row(Button{"✅ Сдать ответ", CallbackSubmit}),
		row(Button{"💡 Подсказка", CallbackHint}),
	}
	if withRestart {
		kb = append(kb, row(Button{"🔄 Начать заново", CallbackStartSolving}))
	}
	return kb
}

// ConfirmTaskKeyboard follows a photo transcription.
func ConfirmTaskKeyboard() Keyboard {
	return Keyboard{
		row(Button{"✅ Верно, решаем!", CallbackConfirmTask}),
		row(Button{"✏️ Исправить текст", CallbackEditTask}),
		row(Button{"🔄 Другое фото", CallbackRetryPhoto}),
	}
}

// ResultKeyboard follows a graded answer.
func ResultKeyboard() Keyboard {
	return Keyboard{
		row(Button{"📚 Новая задача", CallbackStartSolving}),
		row(Button{"📊 Статистика", CallbackShowStats}),
	}
}

// BackKeyboard returns to the task prompt.
func BackKeyboard() Keyboard {
	return Keyboard{row(Button{"🔙 Назад", CallbackStartSolving})}
}

// SettingsKeyboard reflects the session's current settings.
func SettingsKeyboard(s *Session) Keyboard {
	label, ok := difficultyLabels[s.Difficulty]
	if !ok {
		label = s.Difficulty
	}
	return Keyboard{
		row(Button{"Уровень: " + label, CallbackDiffMenu}),
		row(Button{"🎓 Режим экзамена: " + onOff(s.ExamMode), CallbackToggleExam}),
		row(Button{"🎭 Мемы: " + onOff(s.MemesEnabled), CallbackToggleMemes}),
		row(Button{"🔙 Назад", CallbackStartSolving}),
	}
}

// DifficultyKeyboard picks the difficulty level.
func DifficultyKeyboard() Keyboard {
	return Keyboard{
		row(Button{difficultyLabels[DifficultyEasy], PrefixDifficulty + DifficultyEasy}),
		row(Button{difficultyLabels[DifficultyMedium], PrefixDifficulty + DifficultyMedium}),
		row(Button{difficultyLabels[DifficultyHard], PrefixDifficulty + DifficultyHard}),
		row(Button{"🔙 Назад", CallbackSettings}),
	}
}

// CategoryKeyboard picks a math symbol category, two per row.
func CategoryKeyboard() Keyboard {
	var kb Keyboard
	for i := 0; i < len(SymbolCategories); i += 2 {
		r := []Button{{SymbolCategories[i].Label, PrefixCategory + SymbolCategories[i].Name}}
		if i+1 < len(SymbolCategories) {
			r = append(r, Button{SymbolCategories[i+1].Label, PrefixCategory + SymbolCategories[i+1].Name})
		}
		kb = append(kb, r)
	}
	return kb
}

// SymbolKeyboard lays out a category four symbols per row plus a back button.
// Unknown categories yield only the back button.
func SymbolKeyboard(category string) Keyboard {
	var symbols []string
	for _, c := range SymbolCategories {
		if c.Name == category {
			symbols = c.Symbols
			break
		}
	}

	var kb Keyboard
	for i := 0; i < len(symbols); i += 4 {
		end := i + 4
		if end > len(symbols) {
			end = len(symbols)
		}
		r := make([]Button, 0, 4)
		for _, sym := range symbols[i:end] {
			r = append(r, Button{sym, PrefixSymbol + sym})
		}
		kb = append(kb, r)
	}
	return append(kb, row(Button{"« Назад", CallbackBackMenu}))
}

func onOff(v bool) string {
	if v {
		return "✅ Вкл"
	}
	return "❌ Выкл"
}

// StatisticsText renders the statistics view.
func StatisticsText(s *Session) string {
	st := s.Stats
	if st.TotalTasks == 0 {
		return "📊 Статистика пока пуста.\n\nРеши несколько задач, чтобы увидеть свой прогресс!"
	}

	successRate := float64(st.CompletedTasks) / float64(st.TotalTasks) * 100

	var b strings.Builder
	b.WriteString("📊 ТВОЯ СТАТИСТИКА\n\n")
	fmt.Fprintf(&b, "✅ Решено задач: %d/%d\n", st.CompletedTasks, st.TotalTasks)
	fmt.Fprintf(&b, "⭐ Средний балл: %.1f/100\n", st.AverageScore)
	fmt.Fprintf(&b, "💡 Использовано подсказок: %d\n", st.TotalHints)
	fmt.Fprintf(&b, "🎭 Заработано мемов: %d\n", st.TotalMemes)
	fmt.Fprintf(&b, "📈 Процент успеха: %.1f%%\n\n", successRate)
	b.WriteString("📚 Последние задачи:")

	if len(st.History) == 0 {
		b.WriteString("\n— пока нет завершенных задач")
		return b.String()
	}

	recent := st.History
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	for _, h := range recent {
		fmt.Fprintf(&b, "\n%s %s: %d/100", scoreMark(h.Score), h.Date, h.Score)
	}
	return b.String()
}

func scoreMark(score int) string {
	switch {
	case score >= 70:
		return "✅"
	case score >= 50:
		return "⚠️"
	default:
		return "❌"
	}
}

// ResultText renders a graded answer.
func ResultText(task string, v Verification, minutes int) string {
	emoji := "💪"
	if v.Score >= 80 {
		emoji = "🎉"
	} else if v.Score >= 60 {
		emoji = "👍"
	}
	correctness := "Есть ошибки"
	if v.Correct {
		correctness = "Верно!"
	}

	short := []rune(task)
	if len(short) > 50 {
		short = short[:50]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s ПРОВЕРКА ЗАВЕРШЕНА\n\n", emoji)
	fmt.Fprintf(&b, "📝 Задача: %s...\n\n", string(short))
	fmt.Fprintf(&b, "✅ Правильность: %s\n", correctness)
	fmt.Fprintf(&b, "⭐ Оценка: %d/100\n", v.Score)
	fmt.Fprintf(&b, "⏱ Время: %d мин\n\n", minutes)
	fmt.Fprintf(&b, "📊 ОБРАТНАЯ СВЯЗЬ:\n%s\n\n", v.Feedback)

	if len(v.Strengths) > 0 {
		b.WriteString("💪 ЧТО ХОРОШО:\n")
		for _, s := range v.Strengths {
			fmt.Fprintf(&b, "• %s\n", s)
		}
		b.WriteString("\n")
	}
	if len(v.Mistakes) > 0 {
		b.WriteString("⚠️ НАД ЧЕМ ПОРАБОТАТЬ:\n")
		for _, m := range v.Mistakes {
			fmt.Fprintf(&b, "• %s\n", m)
		}
	}
	if !v.Correct {
		fmt.Fprintf(&b, "\n✏️ Правильный ответ: %s", v.FinalAnswer)
	}
	return b.String()
}

// MemeEmoji prefixes a meme according to the score.
func MemeEmoji(score int) string {
	switch {
	case score >= 80:
		return "🎯"
	case score >= 60:
		return "🙂"
	default:
		return "😢"
	}
}

const welcomeText = "👋 Привет! Я твой математический наставник.\n\n" +
	"🎯 Я помогу тебе научиться решать задачи самостоятельно " +
	"через наводящие вопросы.\n\n" +
	"✨ Возможности:\n" +
	"• Пошаговое решение с проверкой понимания\n" +
	"• Отслеживание твоего прогресса\n" +
	"• Адаптация под твой уровень\n" +
	"• Режим экзамена для самопроверки\n" +
	"• 📸 Распознавание задач с фото!\n" +
	"• 🎭 Веселые мемы за решенные задачи!\n\n" +
	"Выбери действие:"

const askTaskText = "📝 Отлично! Отправь мне математическую задачу:\n\n" +
	"✍️ Напиши текстом\n" +
	"📸 Или пришли фото с задачей\n\n" +
	"Примеры:\n" +
	"• Реши уравнение: 3x + 7 = 22\n" +
	"• Найди производную: f(x) = x² + 3x - 5\n" +
	"• Упрости: (2x + 3)(x - 4)"

// HelpText is shown by /help and the help button.
const HelpText = `❓ СПРАВКА

🎯 КАК Я РАБОТАЮ:

1️⃣ Отправь математическую задачу:
   ✍️ Текстом
   📸 Фото (я распознаю текст!)
2️⃣ Я задам наводящие вопросы
3️⃣ Отвечай и двигайся к решению
4️⃣ Когда будешь готов, нажми "Сдать ответ"
5️⃣ Я проверю твое решение и дам оценку

📸 ФОТО ЗАДАЧ:
Можешь сфотографировать задачу из учебника,
тетради или с доски - я распознаю текст!

📝 КОМАНДЫ:
/start - главное меню
/reset - начать новую задачу
/hint - попросить подсказку
/submit - сдать финальный ответ
/stats - посмотреть статистику
/keyboard - математические символы
/help - эта справка

🎓 РЕЖИМ ЭКЗАМЕНА:
Ограниченное количество подсказок
для самопроверки знаний

💪 Чем больше решаешь сам - 
тем лучше учишься!`

const (
	submitPromptText = "✍️ Отлично! Теперь напиши свой ФИНАЛЬНЫЙ ОТВЕТ на задачу.\n\n" +
		"Постарайся написать полное решение с обоснованием."
	resetText           = "🔄 Начнем заново! Отправь новую математическую задачу или фото."
	submitGuidanceText  = "Сначала отправь задачу и начни решение."
	hintGuidanceText    = "Подсказки доступны только во время решения задачи."
	hintAlertText       = "Сначала начни решать задачу!"
	photoRejectedText   = "❌ Сейчас я не жду фото. Используй /reset чтобы начать заново."
	photoReceivedText   = "📸 Получил фото! Распознаю текст задачи..."
	photoFailedText     = "😔 Не удалось обработать фото. Попробуй еще раз или напиши задачу текстом."
	checkingText        = "🔍 Проверяю твое решение..."
	editTaskText        = "✏️ Хорошо! Напиши правильный текст задачи вручную."
	retryPhotoText      = "📸 Хорошо! Отправь новое фото задачи."
	noPendingTaskText   = "Задача с фото не найдена. Отправь фото или напиши задачу текстом."
	categoryPromptText  = "Выбери категорию символов:"
	categoryBackText    = "Выбери категорию:"
	settingsText        = "⚙️ НАСТРОЙКИ\n\nВыбери параметры:"
	difficultyMenuText  = "Выбери уровень сложности:"
	unknownCommandText  = "Не знаю такой команды. Набери /help, чтобы увидеть список."
	unsupportedDataText = "Эта кнопка больше не поддерживается. Набери /start."

	recognitionFailedText = "❌ Не удалось распознать задачу на фото.\n" +
		"Попробуй:\n" +
		"• Сфотографировать при хорошем освещении\n" +
		"• Держать камеру ровно\n" +
		"• Убедиться что текст четкий\n\n" +
		"Или напиши задачу текстом."
)
