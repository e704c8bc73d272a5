package services

// Panel and Reply are the explicit results of a funnel transition. The
// transport renders them; rendering outcomes (including "nothing changed")
// never flow back into the state machine as errors.

type Button struct {
	Label  string
	Action string // callback token routed back into the funnel
	URL    string // external link button; exclusive with Action
}

type Panel struct {
	Text      string
	ParseMode string // "", "Markdown" or "HTML"
	Buttons   [][]Button
	NoPreview bool
}

type Reply struct {
	Panel *Panel

	// Alert is a transient acknowledgement (callback toast), shown
	// without touching the panel.
	Alert string

	// Silent means the event was deliberately ignored.
	Silent bool
}

// Callback tokens understood by the transport router.
const (
	ActionStart       = "start"
	ActionShowPlans   = "mostrar_planos"
	ActionPlanPrefix  = "plano_"
	ActionAcceptTerms = "aceitar_termos"
	ActionVerify      = "verificar"
)
