package orders

import "strconv"

const (
	TopicProductRegistered = "wholesale.product.registered"
	TopicStockReceived     = "wholesale.stock.received"
	TopicRequestCreated    = "wholesale.request.created"
	TopicRequestAccepted   = "wholesale.request.accepted"
	TopicPaymentRecorded   = "wholesale.payment.recorded"
	TopicDeliveryScheduled = "wholesale.delivery.scheduled"
	TopicRequestVerified   = "wholesale.request.verified"
	TopicShortageDetected  = "wholesale.request.shortage"
)

// Partition key = order id (or product id for inventory events) so every
// event of one aggregate keeps its order.
func PartitionKey(id int64) []byte { return []byte(strconv.FormatInt(id, 10)) }
