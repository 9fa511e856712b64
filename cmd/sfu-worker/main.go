// Command sfu-worker wires one Router and one simple Consumer between
// two loopback WebRTC peer connections: a synthetic publisher feeds an
// audio track into the ingest side, and the Router forwards each
// packet, rewritten by a Consumer, out to a subscriber peer connection
// on the other side. It exists to drive the forwarding engine
// end-to-end outside of unit tests; the control/signaling channel a
// real deployment would use is out of scope.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/xuehw357/mediasoup/internal/config"
	"github.com/xuehw357/mediasoup/internal/consumer"
	"github.com/xuehw357/mediasoup/internal/metrics"
	"github.com/xuehw357/mediasoup/internal/router"
	"github.com/xuehw357/mediasoup/pkg/logger"
)

var flags = []cli.Flag{
	&cli.StringFlag{
		Name:  "config",
		Usage: "path to worker config file",
	},
	&cli.StringFlag{
		Name:    "metrics-addr",
		Usage:   "address to serve /metrics on",
		Value:   ":9090",
		EnvVars: []string{"SFU_WORKER_METRICS_ADDR"},
	},
	&cli.BoolFlag{
		Name:  "dev",
		Usage: "use a human-readable development logger",
	},
}

func main() {
	rand.Seed(time.Now().UnixNano())

	app := &cli.App{
		Name:   "sfu-worker",
		Usage:  "run a loopback publish/forward/subscribe demonstration",
		Flags:  flags,
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	conf, err := loadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(c.Bool("dev"))
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	log.Infow("starting sfu-worker",
		"nackBufferCapacity", conf.Nack.BufferCapacity,
		"rtcpEarlyEmitFactor", conf.Rtcp.EarlyEmitFactor,
		"scoreSmoothingWeight", conf.Score.SmoothingWeight,
	)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	go serveMetrics(c.String("metrics-addr"), reg, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Infow("shutdown requested", "signal", sig)
		cancel()
	}()

	return runLoopback(ctx, log, m)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.New("")
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return config.New(string(body))
}

func newLogger(dev bool) (logger.Logger, error) {
	if dev {
		return logger.NewDevelopment()
	}
	return logger.NewProduction()
}

func serveMetrics(addr string, reg *prometheus.Registry, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Infow("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil { //nolint:gosec
		log.Errorw("metrics server exited", err)
	}
}

// runLoopback establishes a publisher peer connection whose audio
// track feeds the Router as one Producer, forwards through a single
// Consumer, and re-emits onto a subscriber peer connection.
func runLoopback(ctx context.Context, log logger.Logger, m *metrics.Metrics) error {
	settingEngine := webrtc.SettingEngine{}
	settingEngine.LoggerFactory = &pionLoggerFactory{log: log}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))

	publishPC, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return fmt.Errorf("new publisher peer connection: %w", err)
	}
	defer publishPC.Close()

	subscribePC, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return fmt.Errorf("new subscriber peer connection: %w", err)
	}
	defer subscribePC.Close()

	outboundTrack, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000},
		"audio", "sfu-worker",
	)
	if err != nil {
		return fmt.Errorf("new outbound track: %w", err)
	}
	if _, err := subscribePC.AddTrack(outboundTrack); err != nil {
		return fmt.Errorf("attach outbound track: %w", err)
	}

	const producerID = "demo-producer"
	const consumerID = "demo-consumer"

	rtr := router.New("demo-router", log, &trackSink{track: outboundTrack}, noopKeyFrameSink{}, m)
	if err := rtr.AddProducer(producerID, 0x1); err != nil {
		return err
	}

	c, err := consumer.New(log, consumer.Params{
		ID:                     consumerID,
		Kind:                   consumer.Audio,
		ConsumableRtpEncodings: []consumer.ConsumableRtpEncoding{{SSRC: 0x1}},
		SSRC:                   uint32(rand.Int31()),
		MappedSSRC:             0x1,
		CNAME:                  "sfu-worker",
		Codec: consumer.CodecParams{
			MimeType:    webrtc.MimeTypeOpus,
			PayloadType: 111,
			ClockRate:   48000,
			RtcpFeedback: []consumer.RtcpFeedback{
				{Type: "nack"},
			},
		},
	}, rtr, metrics.NewScoreSink(m), m)
	if err != nil {
		return fmt.Errorf("new consumer: %w", err)
	}
	if err := rtr.AddConsumer(producerID, c); err != nil {
		return err
	}
	if err := rtr.ProducerNewRtpStream(producerID, &staticProducerStream{score: 10}); err != nil {
		return err
	}

	subscribePC.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Infow("publisher track started", "mime", track.Codec().MimeType)
		for {
			pkt, _, err := track.ReadRTP()
			if err != nil {
				return
			}
			if err := rtr.Forward(producerID, pkt, time.Now()); err != nil {
				log.Warnw("forward failed", err)
			}
		}
	})

	inboundTrack, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000},
		"audio", "sfu-worker-publisher",
	)
	if err != nil {
		return fmt.Errorf("new inbound track: %w", err)
	}
	if _, err := publishPC.AddTrack(inboundTrack); err != nil {
		return fmt.Errorf("attach inbound track: %w", err)
	}

	if err := negotiateLoopback(publishPC, subscribePC); err != nil {
		return fmt.Errorf("negotiate loopback: %w", err)
	}

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	seq := uint16(0)
	ts := uint32(0)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			pkt := &rtp.Packet{
				Header: rtp.Header{
					Version:        2,
					PayloadType:    111,
					SequenceNumber: seq,
					Timestamp:      ts,
					SSRC:           0x1,
				},
				Payload: silentOpusFrame,
			}
			seq++
			ts += 960
			if err := inboundTrack.WriteRTP(pkt); err != nil {
				log.Warnw("write synthetic packet failed", err)
			}
		}
	}
}

// silentOpusFrame is a minimal valid Opus DTX/silence frame, enough to
// exercise the forwarding pipeline without a real audio source.
var silentOpusFrame = []byte{0xf8, 0xff, 0xfe}

// negotiateLoopback performs manual offer/answer exchange and trickles
// ICE candidates directly between the two in-process peer connections;
// there is no signaling transport since both ends live in this binary.
func negotiateLoopback(a, b *webrtc.PeerConnection) error {
	a.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		_ = b.AddICECandidate(cand.ToJSON())
	})
	b.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		_ = a.AddICECandidate(cand.ToJSON())
	})

	offer, err := a.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := a.SetLocalDescription(offer); err != nil {
		return err
	}
	if err := b.SetRemoteDescription(offer); err != nil {
		return err
	}

	answer, err := b.CreateAnswer(nil)
	if err != nil {
		return err
	}
	if err := b.SetLocalDescription(answer); err != nil {
		return err
	}
	return a.SetRemoteDescription(answer)
}

// trackSink writes every Consumer-forwarded packet onto a local
// WebRTC track, implementing router.TransportSink. The Router itself
// records the ObserveSent event for every consumer uniformly, so this
// sink stays a pure passthrough.
type trackSink struct {
	track *webrtc.TrackLocalStaticRTP
}

func (s *trackSink) SendConsumerRtpPacket(_ string, pkt *rtp.Packet) {
	_ = s.track.WriteRTP(pkt)
}

// noopKeyFrameSink discards key-frame requests: the synthetic
// publisher track has no encoder to ask for one.
type noopKeyFrameSink struct{}

func (noopKeyFrameSink) RequestProducerKeyFrame(string, uint32) {}

// staticProducerStream stands in for the ingest-side receive stream
// (out of scope here) with a fixed score and no measured loss.
type staticProducerStream struct {
	score uint8
}

func (s *staticProducerStream) Score() uint8            { return s.score }
func (s *staticProducerStream) LossPercentage() float64 { return 0 }
