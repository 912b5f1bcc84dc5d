package cfd

// CloseReason explains why the maker dropped the connection
type CloseReason string

const (
	CloseReasonMakerVersionOutdated CloseReason = "maker_version_outdated"
	CloseReasonTakerVersionOutdated CloseReason = "taker_version_outdated"
)

// MakerStatus is the taker's view of its link to the maker
type MakerStatus struct {
	Online                bool         `json:"online"`
	ConnectionCloseReason *CloseReason `json:"connection_close_reason,omitempty"`
}

// StatusSummary is a short description of a MakerStatus
type StatusSummary struct {
	Warn    bool
	Online  bool
	Summary string
}

// Describe summarises the maker status.
// A close reason takes precedence over the online flag.
func (s MakerStatus) Describe() StatusSummary {
	if s.ConnectionCloseReason != nil {
		switch *s.ConnectionCloseReason {
		case CloseReasonMakerVersionOutdated:
			return StatusSummary{
				Warn:    true,
				Online:  s.Online,
				Summary: "The maker is running an outdated version",
			}
		case CloseReasonTakerVersionOutdated:
			return StatusSummary{
				Warn:    true,
				Online:  s.Online,
				Summary: "You are running an incompatible version, please upgrade",
			}
		}
	}

	if s.Online {
		return StatusSummary{Online: true, Summary: "The maker is online"}
	}
	return StatusSummary{Summary: "The maker is offline"}
}
