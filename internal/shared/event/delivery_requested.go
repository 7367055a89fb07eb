package event

const DeliveryRequestedDestination string = "challenge_delivery_requested"
const DeliveryRequestedDestinationConsumerDelivery string = "challenge_delivery_requested_delivery"

type DeliveryRequestedMessage struct {
	Subject   string `json:"subject"`
	Method    string `json:"method"`
	Code      string `json:"code"`
	ExpiresAt int64  `json:"expires_at"`
}
