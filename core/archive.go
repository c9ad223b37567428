package core

// Archive is a bounded list of records, newest first.
type Archive struct {
	size    int
	records []interface{}
}

// NewArchive makes an Archive that keeps at most size records.  A
// size less than 1 means no limit.
func NewArchive(size int) *Archive {
	return &Archive{
		size: size,
	}
}

func (a *Archive) Add(record interface{}) {
	a.records = append([]interface{}{record}, a.records...)
	if 0 < a.size && a.size < len(a.records) {
		a.records = a.records[:a.size]
	}
}

// Get returns the records, newest first.
func (a *Archive) Get() []interface{} {
	return a.records
}

func (a *Archive) Len() int {
	return len(a.records)
}

func (a *Archive) Clear() {
	a.records = nil
}

// Back drops the newest steps records and returns the last one
// dropped.  If there aren't that many records, nothing changes.
func (a *Archive) Back(steps int) (interface{}, bool) {
	if steps < 1 || len(a.records) < steps {
		return nil, false
	}
	record := a.records[steps-1]
	a.records = a.records[steps:]
	return record, true
}
