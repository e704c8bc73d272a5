// pkg/tglog/writer.go
package tglog

import (
	"fmt"
	"html"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxEntry keeps forwarded entries under Telegram's message size limit.
const maxEntry = 4000

// Writer forwards log output to an operator chat. Plug it into an
// io.MultiWriter next to stdout; delivery is best-effort and failures go
// to stderr directly to avoid feeding the logger its own errors.
type Writer struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewWriter(api *tgbotapi.BotAPI, chatID int64) *Writer {
	return &Writer{api: api, chatID: chatID}
}

func (w *Writer) Write(p []byte) (int, error) {
	entry := html.EscapeString(string(p))
	if len(entry) > maxEntry {
		entry = entry[:maxEntry] + "\n\n[LOG TRUNCADO POR SER MUITO LONGO]"
	}

	msg := tgbotapi.NewMessage(w.chatID, "<pre>"+entry+"</pre>")
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := w.api.Send(msg); err != nil {
		fmt.Fprintf(os.Stderr, "tglog: failed to forward entry: %v\n", err)
	}

	// Never report an error upstream: log delivery must not break logging.
	return len(p), nil
}
