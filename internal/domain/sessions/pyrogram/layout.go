package pyrogram

import "encoding/base64"

// Layout — одна из исторических раскладок строки Pyrogram. Версионного тега в
// строке нет: раскладка определяется только длиной декодированных данных.
type Layout int

const (
	// LayoutUnknown — длина не соответствует ни одной раскладке.
	LayoutUnknown Layout = iota
	// LayoutLegacyNarrow: dc:u8 | test_mode:u8 | auth_key:256 | user_id:u32 | is_bot:u8 — 263 байта.
	LayoutLegacyNarrow
	// LayoutLegacyWide: dc:u8 | test_mode:u8 | auth_key:256 | user_id:u64 | is_bot:u8 — 267 байт.
	LayoutLegacyWide
	// LayoutCurrent: dc:u8 | api_id:u32 | test_mode:u8 | auth_key:256 | user_id:u64 | is_bot:u8 — 271 байт.
	LayoutCurrent
)

const (
	legacyNarrowSize = 1 + 1 + keySize + 4 + 1
	legacyWideSize   = 1 + 1 + keySize + 8 + 1
	currentSize      = 1 + 4 + 1 + keySize + 8 + 1
)

// ClassifyLength выбирает раскладку по длине декодированных данных.
// Неизвестная длина даёт (LayoutUnknown, false); запасного варианта нет.
func ClassifyLength(n int) (Layout, bool) {
	switch n {
	case legacyNarrowSize:
		return LayoutLegacyNarrow, true
	case legacyWideSize:
		return LayoutLegacyWide, true
	case currentSize:
		return LayoutCurrent, true
	default:
		return LayoutUnknown, false
	}
}

// Size — длина раскладки в байтах.
func (l Layout) Size() int {
	switch l {
	case LayoutLegacyNarrow:
		return legacyNarrowSize
	case LayoutLegacyWide:
		return legacyWideSize
	case LayoutCurrent:
		return currentSize
	default:
		return 0
	}
}

// EncodedLen — длина строки без паддинга: 351, 356 и 362 символа соответственно.
func (l Layout) EncodedLen() int {
	return base64.RawURLEncoding.EncodedLen(l.Size())
}

// HasAPIID сообщает, хранит ли раскладка api_id.
func (l Layout) HasAPIID() bool { return l == LayoutCurrent }

func (l Layout) String() string {
	switch l {
	case LayoutLegacyNarrow:
		return "legacy-u32"
	case LayoutLegacyWide:
		return "legacy-u64"
	case LayoutCurrent:
		return "current"
	default:
		return "unknown"
	}
}
