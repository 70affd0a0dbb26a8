package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Input Errors (E001-E002, E007)
	// ============================================

	"E001": {
		Category: CategoryInput,
		Message:  "Invalid lookup key",
		Detail:   "Lookup keys must be non-empty strings without surrounding whitespace. The lookup returns nil or an empty collection.",
	},
	"E002": {
		Category: CategoryInput,
		Message:  "Invalid selector",
		Detail:   "The selector could not be parsed. The lookup returns nil or an empty collection.",
	},
	"E007": {
		Category: CategoryInput,
		Message:  "Element not found",
		Detail:   "No connected element has the requested id.",
	},

	// ============================================
	// Update Errors (E003)
	// ============================================

	"E003": {
		Category: CategoryUpdate,
		Message:  "Update entry failed",
		Detail:   "One entry of an update mapping could not be applied. The remaining entries were still applied.",
	},

	// ============================================
	// Reactive Errors (E004)
	// ============================================

	"E004": {
		Category: CategoryReactive,
		Message:  "Binding failed",
		Detail:   "A binding function panicked or its value could not be applied. Sibling bindings still ran.",
	},
	"E006": {
		Category: CategoryReactive,
		Message:  "Binding target not found",
		Detail:   "No element matched the binding target.",
	},

	// ============================================
	// Lifecycle Errors (E005, E020)
	// ============================================

	"E005": {
		Category: CategoryLifecycle,
		Message:  "Helper destroyed",
		Detail:   "The helper has been destroyed. Lookups still work but are no longer cached.",
	},
	"E020": {
		Category: CategoryLifecycle,
		Message:  "Timed out waiting for element",
		Detail:   "No matching element appeared before the timeout elapsed.",
	},

	// ============================================
	// Observer Errors (E010)
	// ============================================

	"E010": {
		Category: CategoryObserver,
		Message:  "Mutation record skipped",
		Detail:   "A mutation record could not be folded into the invalidation batch. The rest of the batch was processed.",
	},

	// ============================================
	// Configuration Errors (E030-E031)
	// ============================================

	"E030": {
		Category: CategoryConfig,
		Message:  "Invalid options",
		Detail:   "An option value is out of range.",
	},
	"E031": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "The configuration file could not be read or parsed.",
	},
}

// GetAllCodes returns all registered error codes in sorted order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds or replaces an error template.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
