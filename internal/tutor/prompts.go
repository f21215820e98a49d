package tutor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/socratic/logging"
	"github.com/sirupsen/logrus"
)

// DefaultSystemPrompt is the Socratic tutoring instruction.
const DefaultSystemPrompt = `Ты математический наставник, который использует Сократовский метод обучения.

ПРАВИЛА:
1. НИКОГДА не давай прямые ответы на задачи
2. Веди ученика к решению через наводящие вопросы
3. Разбивай сложные задачи на простые шаги
4. Оценивай уровень понимания по ответам ученика
5. Адаптируй сложность вопросов под уровень ученика
6. Хвали за правильные шаги и мышление
7. Если ученик застрял - дай подсказку, но не решение
8. Проверяй понимание концепций, а не только вычисления

СТРАТЕГИЯ:
- Сначала убедись, что ученик понимает условие задачи
- Определи, какие концепции нужны для решения
- Проверь, знает ли ученик эти концепции
- Веди через небольшие шаги к решению
- После каждого шага проверяй понимание

СТИЛЬ:
- Дружелюбный и поддерживающий
- Задавай один вопрос за раз
- Используй emoji для эмоциональной поддержки (умеренно)
- Говори на русском языке

Если ученик просит прямой ответ, объясни ценность самостоятельного решения.`

const verificationPrompt = `Ты проверяющий математических решений.

ЗАДАЧА: %s

ОТВЕТ УЧЕНИКА: %s

Твоя задача:
1. Проверь правильность финального ответа
2. Оцени качество решения (логика, шаги, обоснование)
3. Укажи ошибки если есть
4. Дай конструктивную обратную связь

Формат ответа (JSON):
{
  "correct": true/false,
  "final_answer": "правильный ответ",
  "score": 0-100,
  "feedback": "детальная обратная связь",
  "mistakes": ["список ошибок если есть"],
  "strengths": ["что ученик сделал хорошо"]
}`

const verificationSystem = "Ты строгий, но справедливый проверяющий."

const memePrompt = `Создай веселый мем-текст для ученика, который только что решил математическую задачу.

КОНТЕКСТ:
- Оценка: %d/100
- Задача была: %s
- Уровень: %s

ТРЕБОВАНИЯ:
1. Мем должен быть актуальным и современным (2024-2025)
2. Используй популярные форматы мемов (но без упоминания конкретных картинок)
3. Связан с математикой и учебой
4. Позитивный и мотивирующий
5. Понятен подросткам и студентам
6. Не длиннее 2-3 строк
7. Можно использовать сленг и интернет-культуру

СТИЛЬ зависит от оценки:
- 80-100: Эпичная победа, "based", "gigachad energy"
- 60-79: Хорошая работа, "respectable", "W"
- 40-59: Поддержка, "we take those", "small wins"
- 0-39: Мотивация, "character development", "learning arc"

Формат ответа - только текст мема, без пояснений.`

const memeSystem = "Создай короткий и позитивный мем."

const recognitionPrompt = `Распознай математическую задачу с этого изображения.

ИНСТРУКЦИИ:
1. Извлеки ТОЛЬКО текст задачи (условие, вопрос)
2. Сохрани все математические символы, формулы, уравнения
3. Если есть несколько задач - извлеки все
4. Если это рукописный текст - постарайся распознать точно
5. Если на фото нет математической задачи - напиши "НЕТ ЗАДАЧИ"

ФОРМАТ ОТВЕТА:
Только чистый текст задачи, без комментариев и пояснений.

Примеры правильного формата:
- Реши уравнение: 2x + 5 = 15
- Найди производную функции f(x) = x³ - 2x + 1
- Упрости выражение: (a + b)² - (a - b)²`

const (
	hintTurn = "Мне нужна подсказка. Дай небольшую подсказку, но не решение."

	fallbackSolving = "Давай подумаем вместе. Попробуй описать следующий шаг решения."
	fallbackOther   = "Расскажи подробнее, что именно тебя интересует в задаче."
)

func taskFramingTurn(task string) string {
	return fmt.Sprintf("Ученик хочет решить задачу: %s\n\nНачни с проверки понимания условия задачи.", task)
}

// PromptSource serves the tutoring system prompt, optionally read from a
// file that is reloaded when it changes on disk.
type PromptSource struct {
	mu     sync.RWMutex
	text   string
	path   string
	logger *logrus.Entry
}

// NewPromptSource returns a source backed by path. An empty path, or a file
// that cannot be read, yields DefaultSystemPrompt.
func NewPromptSource(path string) *PromptSource {
	p := &PromptSource{
		text:   DefaultSystemPrompt,
		path:   path,
		logger: logging.NewLogger("tutor"),
	}
	if path != "" {
		if err := p.Reload(); err != nil {
			p.logger.WithError(err).WithField("path", path).Warn("Using built-in system prompt")
		}
	}
	return p
}

// System returns the current system prompt.
func (p *PromptSource) System() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.text
}

// Path returns the override file, if any.
func (p *PromptSource) Path() string {
	return p.path
}

// Reload re-reads the override file. Blank files are ignored.
func (p *PromptSource) Reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return fmt.Errorf("prompt file %s is empty", p.path)
	}

	p.mu.Lock()
	p.text = text
	p.mu.Unlock()
	return nil
}

// Watch reloads the prompt whenever its file is written or recreated. It
// blocks until ctx is cancelled and is a no-op without an override file.
func (p *PromptSource) Watch(ctx context.Context) error {
	if p.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Editors replace files on save, so watch the directory.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		return err
	}

	target := filepath.Clean(p.path)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := p.Reload(); err != nil {
				p.logger.WithError(err).Warn("Failed to reload system prompt")
				continue
			}
			p.logger.WithField("path", p.path).Info("System prompt reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Errorf("Prompt watcher error: %v", err)
		case <-ctx.Done():
			return nil
		}
	}
}
