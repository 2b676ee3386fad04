package forward

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/juju/errors"
	"github.com/openaqua/tdslink/internal/wire"
	"github.com/openaqua/tdslink/log2"
)

// HTTP forwards readings with a collector-side write key:
// GET <url>?api_key=K&field1=<ppm>&field2=<volt>
var _ Forwarder = &HTTP{} // compile-time interface test

type HTTP struct {
	cfg    Config
	log    *log2.Log
	Client *http.Client
}

func NewHTTP(cfg Config, log *log2.Log) *HTTP {
	cfg.SetDefaults()
	return &HTTP{
		cfg:    cfg,
		log:    log,
		Client: &http.Client{Timeout: cfg.Timeout()},
	}
}

func (h *HTTP) Forward(m wire.Measurement) error {
	q := url.Values{}
	q.Set("api_key", h.cfg.WriteKey)
	q.Set("field1", fmt.Sprintf("%.0f", m.ConcentrationPPM))
	q.Set("field2", fmt.Sprintf("%.2f", m.SensorVoltage))
	full := h.cfg.URL + "?" + q.Encode()

	resp, err := h.Client.Get(full)
	if err != nil {
		return errors.Annotatef(err, "publish %s", m.String())
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.Errorf("publish %s status=%d", m.String(), resp.StatusCode)
	}
	h.log.Infof("collector status: %d", resp.StatusCode)
	return nil
}
