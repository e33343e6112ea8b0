package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeedDrainsInOrder(t *testing.T) {
	f := NewFeed(4)
	f.Post(Info("OTP Sent", "Please check your mobile for the OTP."))
	f.Post(Error("Invalid OTP", "Please try again."))

	got := f.Drain()
	assert.Equal(t, []Notice{
		{Title: "OTP Sent", Description: "Please check your mobile for the OTP.", Variant: VariantDefault},
		{Title: "Invalid OTP", Description: "Please try again.", Variant: VariantDestructive},
	}, got)
	assert.Equal(t, 0, f.Len())
	assert.Equal(t, []Notice{}, f.Drain())
}

func TestFeedDropsOldestWhenFull(t *testing.T) {
	f := NewFeed(2)
	f.Post(Info("a", ""))
	f.Post(Info("b", ""))
	f.Post(Info("c", ""))

	got := f.Drain()
	assert.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Title)
	assert.Equal(t, "c", got[1].Title)
}
