package proto

type PullRequest struct {
	// Watermarks maps an entity name to the last sync timestamp the client
	// holds for it. A nil or missing watermark requests every record.
	Watermarks map[string]*string `json:"watermarks,omitempty"`
}

func (x *PullRequest) GetWatermarks() map[string]*string {
	if x != nil {
		return x.Watermarks
	}
	return nil
}

type Change struct {
	Id        string         `json:"id"`
	Data      map[string]any `json:"data"`
	UpdatedAt string         `json:"updated_at"`
}

type PullReply struct {
	Changes       map[string][]*Change `json:"changes"`
	SyncTimestamp string               `json:"sync_timestamp"`
}

type PushRecord struct {
	Id   string         `json:"id"`
	Data map[string]any `json:"data"`
}

type PushRequest struct {
	Changes map[string][]*PushRecord `json:"changes"`
}

func (x *PushRequest) GetChanges() map[string][]*PushRecord {
	if x != nil {
		return x.Changes
	}
	return nil
}

type Outcome struct {
	Entity string `json:"entity"`
	Id     string `json:"id"`
	Action string `json:"action,omitempty"`
	Error  string `json:"error,omitempty"`
}

type PushResults struct {
	Success []*Outcome `json:"success"`
	Errors  []*Outcome `json:"errors"`
}

type PushReply struct {
	Results       *PushResults `json:"results"`
	SyncTimestamp string       `json:"sync_timestamp"`
}

type TrackChangesRequest struct{}

// ChangeNotice announces a record written by a push of the same club.
type ChangeNotice struct {
	Entity    string `json:"entity"`
	Id        string `json:"id"`
	Action    string `json:"action"`
	UpdatedAt string `json:"updated_at"`
}
