package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/sirupsen/logrus"

	"github.com/vietdv277/gpuws/internal/logger"
)

// DefaultPollInterval is the delay between successive state checks
const DefaultPollInterval = 3 * time.Second

// Waiter polls an instance until it reaches a target state.
type Waiter struct {
	// Interval between polls, DefaultPollInterval when zero
	Interval time.Duration
	// Timeout bounds the whole wait; zero waits until ctx is done
	Timeout time.Duration
	// Log receives progress lines, the shared logger when nil
	Log *logrus.Entry
}

// unreachable lists the states from which a target can never be reached
var unreachable = map[ec2types.InstanceStateName][]ec2types.InstanceStateName{
	ec2types.InstanceStateNameRunning: {ec2types.InstanceStateNameShuttingDown, ec2types.InstanceStateNameTerminated},
	ec2types.InstanceStateNameStopped: {ec2types.InstanceStateNameShuttingDown, ec2types.InstanceStateNameTerminated},
}

// WaitForState sleeps, re-describes the instance and returns once its state
// equals target. It gives up when ctx is done, when Timeout passes, when
// the instance disappears or when it lands in a state target cannot follow.
func (w *Waiter) WaitForState(ctx context.Context, api EC2API, instanceID string, target ec2types.InstanceStateName) error {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}

	base := w.Log
	if base == nil {
		base = logrus.NewEntry(logger.Logger())
	}
	log := base.WithFields(logrus.Fields{
		"instance_id": instanceID,
		"target":      string(target),
	})
	log.Infof("waiting for instance to reach %s", target)

	var last ec2types.InstanceStateName
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: instance %s still %s after %s, expected %s",
					ErrWaitTimeout, instanceID, stateOrUnknown(last), w.Timeout, target)
			}
			return ctx.Err()
		case <-time.After(interval):
		}

		state, err := instanceState(ctx, api, instanceID)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			return err
		}

		if state == target {
			log.Infof("instance is %s", state)
			return nil
		}

		for _, dead := range unreachable[target] {
			if state == dead {
				return fmt.Errorf("%w: instance %s is %s while waiting for %s",
					ErrUnexpectedState, instanceID, state, target)
			}
		}

		if state != last {
			log.Infof("instance is %s", state)
			last = state
		}
	}
}

func instanceState(ctx context.Context, api EC2API, instanceID string) (ec2types.InstanceStateName, error) {
	output, err := api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe instance %s: %w", instanceID, err)
	}

	if len(output.Reservations) == 0 || len(output.Reservations[0].Instances) == 0 {
		return "", fmt.Errorf("%w: instance %s disappeared while polling", ErrUnexpectedState, instanceID)
	}

	inst := output.Reservations[0].Instances[0]
	if inst.State == nil {
		return "", nil
	}
	return inst.State.Name, nil
}

func stateOrUnknown(s ec2types.InstanceStateName) string {
	if s == "" {
		return "unknown"
	}
	return string(s)
}
