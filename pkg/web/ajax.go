package web

import (
	"encoding/xml"
	"net/http"

	"github.com/golang/glog"

	"github.com/robotalks/cirbuf/pkg/channel"
)

// dataResponse is the document polled by the configuration pages.
type dataResponse struct {
	XMLName  xml.Name      `xml:"response"`
	Channels []dataChannel `xml:"channel"`
}

type dataChannel struct {
	Name     string `xml:"name,attr"`
	Active   bool   `xml:"active"`
	RxCount  uint32 `xml:"rx_count"`
	RxStatus string `xml:"rx_status"`
	TxCount  uint32 `xml:"tx_count"`
	TxStatus string `xml:"tx_status"`
	Frames   uint64 `xml:"frames"`
}

func (s *Server) dataXML(w http.ResponseWriter, r *http.Request) {
	var resp dataResponse
	for _, ch := range s.Channels.Channels() {
		st := ch.Status()
		resp.Channels = append(resp.Channels, dataChannel{
			Name:     st.Channel,
			Active:   st.Active,
			RxCount:  st.RxCount,
			RxStatus: st.RxStatus,
			TxCount:  st.TxCount,
			TxStatus: st.TxStatus,
			Frames:   st.Frames,
		})
	}
	w.Header().Set("Content-Type", "text/xml")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(xml.Header))
	if err := xml.NewEncoder(w).Encode(&resp); err != nil {
		glog.Warningf("web: encode data.xml: %v", err)
	}
}

// postCmd forwards the raw query, e.g. "oy1=1", as a frame to the channel
// named by the X-Channel header or the first channel.
func (s *Server) postCmd(w http.ResponseWriter, r *http.Request) {
	cmd := r.URL.RawQuery
	if cmd == "" {
		http.Error(w, "command expected", http.StatusBadRequest)
		return
	}
	var ch *channel.Channel
	if name := r.Header.Get("X-Channel"); name != "" {
		var ok bool
		if ch, ok = s.Channels.Get(name); !ok {
			http.Error(w, "channel not found: "+name, http.StatusNotFound)
			return
		}
	} else if chs := s.Channels.Channels(); len(chs) > 0 {
		ch = chs[0]
	} else {
		http.Error(w, "no channel", http.StatusNotFound)
		return
	}
	s.send(w, ch, []byte(cmd))
}
