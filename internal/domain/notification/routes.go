package notification

// RouteKind tags what a click on a notification should do.
type RouteKind int

const (
	RouteNavigate RouteKind = iota
	RouteSnooze
	RouteSkip
)

func (k RouteKind) String() string {
	switch k {
	case RouteNavigate:
		return "navigate"
	case RouteSnooze:
		return "snooze"
	case RouteSkip:
		return "skip"
	}
	return "unknown"
}

// Route is the resolved outcome of a click. Target is only set for RouteNavigate.
type Route struct {
	Kind   RouteKind
	Target string
}

// DefaultTarget is opened for body clicks and unknown actions.
const DefaultTarget = "/"

var routes = map[string]Route{
	ActionLogWeight:        {Kind: RouteNavigate, Target: "/daily-entry?focus=weight"},
	ActionReviewPriorities: {Kind: RouteNavigate, Target: "/priorities"},
	ActionLogMeal:          {Kind: RouteNavigate, Target: "/meals"},
	ActionLogWater:         {Kind: RouteNavigate, Target: "/daily-entry?focus=water"},
	ActionWriteJournal:     {Kind: RouteNavigate, Target: "/journal"},
	ActionOpen:             {Kind: RouteNavigate, Target: DefaultTarget},
	ActionSnooze:           {Kind: RouteSnooze},
	ActionSkip:             {Kind: RouteSkip},
	ActionDismiss:          {Kind: RouteSkip},
}

// ResolveAction maps an action name to its route. Unknown or empty actions
// navigate to DefaultTarget.
func ResolveAction(action string) Route {
	if r, ok := routes[action]; ok {
		return r
	}
	return Route{Kind: RouteNavigate, Target: DefaultTarget}
}
