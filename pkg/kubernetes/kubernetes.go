// Package kubernetes provides a relay.Source for a key of a Kubernetes
// ConfigMap or Secret using the Watch API.
package kubernetes

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"

	"github.com/zoobzio/relay"
)

// ResourceType specifies the type of Kubernetes resource to watch.
type ResourceType int

const (
	// ConfigMap watches a ConfigMap resource.
	ConfigMap ResourceType = iota
	// Secret watches a Secret resource.
	Secret
)

func (rt ResourceType) String() string {
	if rt == Secret {
		return "secret"
	}
	return "configmap"
}

// errWatchClosed ends one watch session; the source reconnects.
var errWatchClosed = errors.New("watch channel closed")

// Source streams one data key of a ConfigMap or Secret.
type Source struct {
	client       kubernetes.Interface
	namespace    string
	name         string
	key          string
	resourceType ResourceType
}

// Option configures a Source.
type Option func(*Source)

// WithResourceType sets the resource type to watch.
// Defaults to ConfigMap.
func WithResourceType(rt ResourceType) Option {
	return func(s *Source) {
		s.resourceType = rt
	}
}

// New creates a Source for key within the named resource.
func New(client kubernetes.Interface, namespace, name, key string, opts ...Option) *Source {
	s := &Source{
		client:       client,
		namespace:    namespace,
		name:         name,
		key:          key,
		resourceType: ConfigMap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stream returns a stream of the key's value: the current value, then the
// value after every change to it. Updates that leave the key unchanged are
// skipped. A closed watch is reopened; the stream fails if the resource
// cannot be read.
func (s *Source) Stream() relay.Stream[[]byte] {
	return func(ctx context.Context, emit func([]byte) error) error {
		var last []byte
		send := func(value []byte) error {
			if value == nil || (last != nil && bytes.Equal(value, last)) {
				return nil
			}
			last = value
			return emit(value)
		}

		for {
			err := s.session(ctx, send)
			if errors.Is(err, errWatchClosed) && ctx.Err() == nil {
				continue
			}
			return err
		}
	}
}

// session reads the resource and follows it until the watch ends.
func (s *Source) session(ctx context.Context, send func([]byte) error) error {
	value, resourceVersion, err := s.getValue(ctx)
	if err != nil {
		return fmt.Errorf("failed to get %s %s/%s: %w", s.resourceType, s.namespace, s.name, err)
	}
	if err := send(value); err != nil {
		return err
	}

	opts := metav1.ListOptions{
		FieldSelector:   fmt.Sprintf("metadata.name=%s", s.name),
		ResourceVersion: resourceVersion,
		Watch:           true,
	}

	var watcher watch.Interface
	if s.resourceType == ConfigMap {
		watcher, err = s.client.CoreV1().ConfigMaps(s.namespace).Watch(ctx, opts)
	} else {
		watcher, err = s.client.CoreV1().Secrets(s.namespace).Watch(ctx, opts)
	}
	if err != nil {
		return fmt.Errorf("failed to start watch: %w", err)
	}
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.ResultChan():
			if !ok {
				return errWatchClosed
			}
			switch event.Type {
			case watch.Error:
				return errWatchClosed
			case watch.Deleted, watch.Bookmark:
				continue
			}
			if err := send(s.extractValue(event.Object)); err != nil {
				return err
			}
		}
	}
}

func (s *Source) getValue(ctx context.Context) ([]byte, string, error) {
	if s.resourceType == ConfigMap {
		cm, err := s.client.CoreV1().ConfigMaps(s.namespace).Get(ctx, s.name, metav1.GetOptions{})
		if err != nil {
			return nil, "", err
		}
		return s.extractValue(cm), cm.ResourceVersion, nil
	}

	secret, err := s.client.CoreV1().Secrets(s.namespace).Get(ctx, s.name, metav1.GetOptions{})
	if err != nil {
		return nil, "", err
	}
	return s.extractValue(secret), secret.ResourceVersion, nil
}

// extractValue returns the key's value, or nil if obj is not the watched
// resource type or lacks the key.
func (s *Source) extractValue(obj any) []byte {
	switch s.resourceType {
	case ConfigMap:
		if cm, ok := obj.(*corev1.ConfigMap); ok {
			if v, ok := cm.Data[s.key]; ok {
				return []byte(v)
			}
			return cm.BinaryData[s.key]
		}
	case Secret:
		if secret, ok := obj.(*corev1.Secret); ok {
			return secret.Data[s.key]
		}
	}
	return nil
}
