// Package v1 defines the wire messages published by the MQTT bridge.
//
// Topics, relative to the broker URL prefix:
//
//	<device>/meta             retained device meta (JSON), cleared by will
//	<device>/<channel>/rx     Frame received from the device
//	<device>/<channel>/tx     Frame to be sent to the device
//	<device>/<channel>/status retained ChannelStatus
package v1

import (
	"github.com/golang/protobuf/proto"
)

// Frame is a single decoded packet of a channel.
type Frame struct {
	Channel     string `protobuf:"bytes,1,opt,name=channel,proto3" json:"channel,omitempty"`
	Seq         uint64 `protobuf:"varint,2,opt,name=seq,proto3" json:"seq,omitempty"`
	Data        []byte `protobuf:"bytes,3,opt,name=data,proto3" json:"data,omitempty"`
	TimestampNs int64  `protobuf:"varint,4,opt,name=timestamp_ns,json=timestampNs,proto3" json:"timestamp_ns,omitempty"`
	Device      string `protobuf:"bytes,5,opt,name=device,proto3" json:"device,omitempty"`
}

// Reset implements proto.Message.
func (m *Frame) Reset() { *m = Frame{} }

// String implements proto.Message.
func (m *Frame) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*Frame) ProtoMessage() {}

// ChannelStatus is the snapshot of a channel's buffers and counters.
type ChannelStatus struct {
	Channel      string `protobuf:"bytes,1,opt,name=channel,proto3" json:"channel,omitempty"`
	Active       bool   `protobuf:"varint,2,opt,name=active,proto3" json:"active,omitempty"`
	RxCount      uint32 `protobuf:"varint,3,opt,name=rx_count,json=rxCount,proto3" json:"rx_count,omitempty"`
	RxCapacity   uint32 `protobuf:"varint,4,opt,name=rx_capacity,json=rxCapacity,proto3" json:"rx_capacity,omitempty"`
	RxStatus     string `protobuf:"bytes,5,opt,name=rx_status,json=rxStatus,proto3" json:"rx_status,omitempty"`
	TxCount      uint32 `protobuf:"varint,6,opt,name=tx_count,json=txCount,proto3" json:"tx_count,omitempty"`
	TxCapacity   uint32 `protobuf:"varint,7,opt,name=tx_capacity,json=txCapacity,proto3" json:"tx_capacity,omitempty"`
	TxStatus     string `protobuf:"bytes,8,opt,name=tx_status,json=txStatus,proto3" json:"tx_status,omitempty"`
	Frames       uint64 `protobuf:"varint,9,opt,name=frames,proto3" json:"frames,omitempty"`
	DroppedBytes uint64 `protobuf:"varint,10,opt,name=dropped_bytes,json=droppedBytes,proto3" json:"dropped_bytes,omitempty"`
	DecodeErrors uint64 `protobuf:"varint,11,opt,name=decode_errors,json=decodeErrors,proto3" json:"decode_errors,omitempty"`
	Overflows    uint64 `protobuf:"varint,12,opt,name=overflows,proto3" json:"overflows,omitempty"`
	RxBytes      uint64 `protobuf:"varint,13,opt,name=rx_bytes,json=rxBytes,proto3" json:"rx_bytes,omitempty"`
	TxBytes      uint64 `protobuf:"varint,14,opt,name=tx_bytes,json=txBytes,proto3" json:"tx_bytes,omitempty"`
}

// Reset implements proto.Message.
func (m *ChannelStatus) Reset() { *m = ChannelStatus{} }

// String implements proto.Message.
func (m *ChannelStatus) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*ChannelStatus) ProtoMessage() {}
