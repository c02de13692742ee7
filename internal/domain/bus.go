package domain

import "context"

// MessageBus routes normalized messages between the bridge and the
// applications consuming it.
type MessageBus interface {
	Publish(msg NormalizedMessage)
	Subscribe() <-chan NormalizedMessage
	SendOutbound(msg NormalizedMessage)
	OnOutbound(channelName string, handler func(NormalizedMessage))
	Close()
}

// DedupStore records which update ids have been processed.
//
// Claim is an atomic check-and-set: for any id, exactly one concurrent
// caller observes true (the claim), every other caller observes false.
// Claims expire after the store's retention window, after which the id
// may be claimed again.
type DedupStore interface {
	Claim(ctx context.Context, updateID int64) (bool, error)
	Close() error
}
