package qdrant

// Payload field keys shared by filters and records. The rules collection
// keeps the registry's camelCase field names; the other collections use
// snake_case.
const (
	KeyID           = "id"
	KeySessionID    = "session_id"
	KeyChunkIndex   = "chunk_index"
	KeyChunkText    = "chunk_text"
	KeyDate         = "date"
	KeyQualityScore = "quality_score"
	KeyPendingScore = "pending_score"

	KeyFailureDescription = "failure_description"
	KeyRootCause          = "root_cause"
	KeyReflection         = "reflection"
	KeyPreventionRule     = "prevention_rule"

	KeyText               = "text"
	KeyStatus             = "status"
	KeySource             = "source"
	KeyCategories         = "categories"
	KeyReinforcementCount = "reinforcementCount"
	KeyCreatedAt          = "createdAt"
)

// =============================================================================
// TYPED PAYLOAD RECORDS
// =============================================================================

// ChunkPayload is the payload of one session chunk point. QualityScore is
// nil until the scorer has run; scores are 0-10 so zero is a real score.
type ChunkPayload struct {
	SessionID    string
	ChunkIndex   int
	ChunkText    string
	Date         string // ISO-8601
	QualityScore *int
	PendingScore bool
}

// LogicalID is the string ID the point ID hashes from.
func (p ChunkPayload) LogicalID() string {
	return chunkLogicalID(p.SessionID, p.ChunkIndex)
}

// ToMap renders the payload for an upsert.
func (p ChunkPayload) ToMap() map[string]any {
	m := map[string]any{
		KeyID:           p.LogicalID(),
		KeySessionID:    p.SessionID,
		KeyChunkIndex:   p.ChunkIndex,
		KeyChunkText:    p.ChunkText,
		KeyDate:         p.Date,
		KeyPendingScore: p.PendingScore,
	}
	if p.QualityScore != nil {
		m[KeyQualityScore] = *p.QualityScore
	}
	return m
}

// ChunkPayloadFrom decodes a payload map coming back from the store.
func ChunkPayloadFrom(m map[string]any) ChunkPayload {
	return ChunkPayload{
		SessionID:    payloadString(m, KeySessionID),
		ChunkIndex:   payloadInt(m, KeyChunkIndex),
		ChunkText:    payloadString(m, KeyChunkText),
		Date:         payloadString(m, KeyDate),
		QualityScore: payloadIntPtr(m, KeyQualityScore),
		PendingScore: payloadBool(m, KeyPendingScore),
	}
}

// Scored reports whether the chunk already carries a quality score.
func (p ChunkPayload) Scored() bool { return p.QualityScore != nil }

// ReflectionPayload is the payload of one failure reflection point.
type ReflectionPayload struct {
	SessionID          string
	Date               string // ISO-8601
	FailureDescription string // which signal fired, e.g. "retry-loop"
	RootCause          string
	Reflection         string
	PreventionRule     string
	QualityScore       int // 0 until scored
}

// ToMap renders the payload for an upsert.
func (p ReflectionPayload) ToMap() map[string]any {
	return map[string]any{
		KeySessionID:          p.SessionID,
		KeyDate:               p.Date,
		KeyFailureDescription: p.FailureDescription,
		KeyRootCause:          p.RootCause,
		KeyReflection:         p.Reflection,
		KeyPreventionRule:     p.PreventionRule,
		KeyQualityScore:       p.QualityScore,
	}
}

// ReflectionPayloadFrom decodes a payload map coming back from the store.
func ReflectionPayloadFrom(m map[string]any) ReflectionPayload {
	return ReflectionPayload{
		SessionID:          payloadString(m, KeySessionID),
		Date:               payloadString(m, KeyDate),
		FailureDescription: payloadString(m, KeyFailureDescription),
		RootCause:          payloadString(m, KeyRootCause),
		Reflection:         payloadString(m, KeyReflection),
		PreventionRule:     payloadString(m, KeyPreventionRule),
		QualityScore:       payloadInt(m, KeyQualityScore),
	}
}

// RulePayload is the payload of one rule point. The rules collection mirrors
// active rules only; the registry file stays the source of truth.
type RulePayload struct {
	RuleID             string
	Text               string
	Status             string
	Source             string
	Categories         []string
	ReinforcementCount int
	CreatedAt          string // ISO-8601
}

// ToMap renders the payload for an upsert.
func (p RulePayload) ToMap() map[string]any {
	return map[string]any{
		KeyID:                 p.RuleID,
		KeyText:               p.Text,
		KeyStatus:             p.Status,
		KeySource:             p.Source,
		KeyCategories:         p.Categories,
		KeyReinforcementCount: p.ReinforcementCount,
		KeyCreatedAt:          p.CreatedAt,
	}
}

// RulePayloadFrom decodes a payload map coming back from the store.
func RulePayloadFrom(m map[string]any) RulePayload {
	return RulePayload{
		RuleID:             payloadString(m, KeyID),
		Text:               payloadString(m, KeyText),
		Status:             payloadString(m, KeyStatus),
		Source:             payloadString(m, KeySource),
		Categories:         payloadStrings(m, KeyCategories),
		ReinforcementCount: payloadInt(m, KeyReinforcementCount),
		CreatedAt:          payloadString(m, KeyCreatedAt),
	}
}

// =============================================================================
// MAP HELPERS
// =============================================================================

// JSON decoding hands back float64 for every number, so the accessors fold
// the numeric cases.

func payloadString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func payloadInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

func payloadIntPtr(m map[string]any, key string) *int {
	if _, ok := m[key]; !ok {
		return nil
	}
	if m[key] == nil {
		return nil
	}
	n := payloadInt(m, key)
	return &n
}

func payloadBool(m map[string]any, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

func payloadStrings(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
