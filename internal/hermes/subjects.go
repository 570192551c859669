package hermes

const (
	SubjectAllMessages = "casting.message.*.created"

	StreamName   = "CASTING_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

// StreamSubjects are captured by the JetStream stream.
var StreamSubjects = []string{"casting.>"}

func SubjectRequestCreated(requestID string) string { return "casting.request." + requestID + ".created" }
func SubjectRequestStatus(requestID string) string  { return "casting.request." + requestID + ".status" }

func SubjectMessageCreated(receiverID string) string { return "casting.message." + receiverID + ".created" }

func SubjectDancerRegistered(dancerID string) string { return "casting.dancer." + dancerID + ".registered" }
func SubjectDancerReviewed(dancerID string) string   { return "casting.dancer." + dancerID + ".reviewed" }

func SubjectCreditsSpent(userID string) string     { return "casting.credits." + userID + ".spent" }
func SubjectCreditsPurchased(userID string) string { return "casting.credits." + userID + ".purchased" }
