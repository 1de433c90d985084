package orders

const (
	TopicOrderCreated   = "order.created"
	TopicOrderPaid      = "order.paid"
	TopicOrderDelivered = "order.delivered"
	TopicOrderDeleted   = "order.deleted"
)

// Partition key = order id so that every event of one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
