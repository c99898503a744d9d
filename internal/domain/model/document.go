// document.go — метаданные документов, приложенных к анкете.
// Байты файлов хранятся во внешнем файловом хранилище и через
// Admin Module никогда не проходят — здесь только file_id и метаданные.
package model

import "time"

// Document — метаданные приложенного документа (таблица documents).
type Document struct {
	ID               string
	ApplicationID    string
	FileID           string // ключ файла во внешнем хранилище
	OriginalFilename string
	ContentType      string
	SizeBytes        int64
	UploadedAt       time.Time
}
