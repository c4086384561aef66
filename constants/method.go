package constants

// Extraction method tags stored on extraction_fields rows.
const (
	MethodPattern = "pattern"
	MethodModel   = "model"
)

// EngineNative tags documents whose text came from embedded selectable text.
const EngineNative = "native"

// OCREngineTag builds the engine tag for a recognition pass, e.g. "ocr:eng".
func OCREngineTag(langs string) string {
	return "ocr:" + langs
}
