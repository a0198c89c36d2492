package coursetree

import "errors"

// Ошибки валидации структурных операций. Хендлеры маппят их на HTTP-коды
// через errors.Is, поэтому тексты стабильны и конкретны: UI должен уметь
// отличить «раздел не найден» от «перемещение в собственное поддерево».
var (
	ErrNotFound     = errors.New("раздел не найден")
	ErrCrossCourse  = errors.New("раздел и родитель принадлежат разным курсам")
	ErrCycle        = errors.New("перемещение сделало бы раздел собственным предком")
	ErrInvalidBatch = errors.New("пакет реордеринга отклонён")
	ErrValidation   = errors.New("некорректные данные раздела")
)
