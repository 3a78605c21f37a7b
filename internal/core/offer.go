package core

// FileOffer is the pending state of one file-transfer negotiation.
// A room holds at most one active offer; it lives in the room's slot from
// FILE_OFFER until resolution and is only touched under the registry lock.
type FileOffer struct {
	Offerer  string
	Filename string
	Size     uint32

	accepted map[string]struct{}
	rejected map[string]struct{}
}

func newFileOffer(offerer, filename string, size uint32) *FileOffer {
	return &FileOffer{
		Offerer:  offerer,
		Filename: filename,
		Size:     size,
		accepted: make(map[string]struct{}),
		rejected: make(map[string]struct{}),
	}
}

func (o *FileOffer) accept(pseudonym string) {
	o.accepted[pseudonym] = struct{}{}
}

func (o *FileOffer) reject(pseudonym string) {
	o.rejected[pseudonym] = struct{}{}
}

// complete reports whether every member other than the offerer has accepted.
func (o *FileOffer) complete(members map[string]*Session) bool {
	for p := range members {
		if p == o.Offerer {
			continue
		}
		if _, ok := o.accepted[p]; !ok {
			return false
		}
	}
	return true
}
