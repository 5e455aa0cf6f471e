package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kilianp07/batsim/core/control"
	"github.com/kilianp07/batsim/core/logger"
)

// Control executes commands received on <prefix>/cmd/<name> and answers on
// <prefix>/status.
type Control struct {
	cli Client
	svc control.Service
	log logger.Logger
	ctx context.Context
}

type controlError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type controlReply struct {
	Command string          `json:"command"`
	OK      bool            `json:"ok"`
	Error   *controlError   `json:"error,omitempty"`
	Status  *control.Status `json:"status,omitempty"`
}

// NewControl wires svc to cli.
func NewControl(cli Client, svc control.Service, log logger.Logger) *Control {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Control{cli: cli, svc: svc, log: log, ctx: context.Background()}
}

// Start subscribes to the command topics. ctx bounds hardware calls made on
// behalf of remote commands.
func (c *Control) Start(ctx context.Context) error {
	c.ctx = ctx
	topic := c.cli.Topic("cmd/+")
	if err := c.cli.Subscribe(topic, c.handle); err != nil {
		return err
	}
	c.log.Infof("listening for commands on %s", topic)
	return nil
}

func (c *Control) handle(topic string, payload []byte) {
	cmd := topic[strings.LastIndex(topic, "/")+1:]
	err := c.execute(cmd, payload)
	reply := controlReply{Command: cmd, OK: err == nil}
	if err != nil {
		c.log.Warnf("command %s failed: %v", cmd, err)
		reply.Error = &controlError{Code: codeFor(err), Message: err.Error()}
	} else {
		st := c.svc.Status()
		reply.Status = &st
	}
	b, merr := json.Marshal(reply)
	if merr != nil {
		c.log.Errorf("encode reply: %v", merr)
		return
	}
	if perr := c.cli.Publish(c.cli.Topic("status"), b); perr != nil {
		c.log.Errorf("publish reply: %v", perr)
	}
}

type badRequest struct{ error }

func codeFor(err error) string {
	if _, ok := err.(badRequest); ok {
		return control.CodeBadRequest
	}
	return control.ErrorCode(err)
}

func (c *Control) execute(cmd string, payload []byte) error {
	switch cmd {
	case "start":
		return c.svc.Start()
	case "stop":
		c.svc.Stop()
		return nil
	case "status":
		return nil
	case "load":
		var req struct {
			CurrentMA *float64 `json:"current_ma"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return badRequest{fmt.Errorf("decode load: %w", err)}
		}
		if req.CurrentMA == nil {
			return badRequest{fmt.Errorf("current_ma is required")}
		}
		return c.svc.SetLoad(c.ctx, *req.CurrentMA)
	case "parameters":
		// Fields absent from the payload keep their current value.
		p := c.svc.Parameters()
		if err := json.Unmarshal(payload, &p); err != nil {
			return badRequest{fmt.Errorf("decode parameters: %w", err)}
		}
		return c.svc.UpdateParameters(p)
	default:
		return badRequest{fmt.Errorf("unknown command %q", cmd)}
	}
}
