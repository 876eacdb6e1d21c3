package prompt

// Intent names. They double as LLM profile names, so a provider can
// route each intent to a different model.
const (
	IntentIdentify = "identify"
	IntentReverify = "reverify"
	IntentExpand   = "expand"
	IntentNearby   = "nearby"
	IntentPodcast  = "podcast"
)

// Subject describes what a request is about.
type Subject struct {
	// Title of the already-identified landmark. Required for reverify,
	// expand, nearby and podcast.
	Title string

	// Query is the free-text search input for a text-only identify.
	Query string

	// HasImage marks an identify/reverify that travels with a still.
	HasImage bool

	// WikiExtract is optional grounding prose injected into enrichment
	// prompts when Wikipedia grounding is enabled.
	WikiExtract string
}

// Request is a fully built backend instruction.
type Request struct {
	Intent      string
	Instruction string
	Locale      string
}

// Response contracts, one per intent. The Backend Gateway unmarshals
// the raw response into these and validates required fields; nothing
// outside the declared fields ever reaches the session.

// IdentifyPayload is the contract for identify and reverify.
type IdentifyPayload struct {
	Title        string   `json:"title"`
	Uncertain    bool     `json:"uncertain"`
	Message      string   `json:"message"`
	History      string   `json:"history"`
	Architecture string   `json:"architecture"`
	FunFacts     []string `json:"fun_facts"`
}

// ExpandPayload is the contract for the expand enrichment.
type ExpandPayload struct {
	History string `json:"history"`
}

// NearbyEntry is one suggestion of the nearby contract.
type NearbyEntry struct {
	Name      string  `json:"name"`
	Distance  float64 `json:"distance_km"`
	Direction string  `json:"direction"`
	Brief     string  `json:"brief"`
}

// NearbyPayload is the contract for the nearby enrichment.
type NearbyPayload struct {
	Nearby []NearbyEntry `json:"nearby"`
}

// PodcastPayload is the contract for the podcast enrichment.
type PodcastPayload struct {
	Title  string `json:"title"`
	Script string `json:"script"`
}
