package core

import (
	"github.com/google/uuid"

	"pkt.systems/chatdeck/schema"
)

func newTabID() schema.TabID {
	return schema.TabID(uuid.NewString())
}
