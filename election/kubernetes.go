package election

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"
)

// Kubernetes 基于 coordination.k8s.io Lease 的选举.
//
// LeaseDuration 等于选举超时，RenewDeadline 为其 2/3，RetryPeriod 为其 1/4.
type Kubernetes struct {
	client    kubernetes.Interface
	namespace string
	name      string
	timeout   time.Duration
	opts      *options

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	leader atomic.Bool
}

// NewKubernetes 创建基于 Lease 的选举，key 会被转换为合法的 Lease 名称.
func NewKubernetes(client kubernetes.Interface, namespace, key string, timeout time.Duration, opts ...Option) (*Kubernetes, error) {
	if client == nil {
		return nil, &ConfigError{Field: "kubernetes", Message: "client cannot be nil"}
	}
	if key == "" {
		return nil, ErrEmptyKey
	}
	if namespace == "" {
		namespace = "default"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	o := applyOptions(opts)
	if o.identity == "" {
		o.identity = defaultIdentity()
	}

	k := &Kubernetes{
		client:    client,
		namespace: namespace,
		name:      leaseName(key),
		timeout:   timeout,
		opts:      o,
	}

	// 提前校验选举参数
	if _, err := k.newLeaderElector(); err != nil {
		return nil, err
	}
	return k, nil
}

// NewKubernetesClient 根据 kubeconfig 创建客户端，kubeconfig 为空时使用集群内配置.
func NewKubernetesClient(kubeconfig string) (kubernetes.Interface, error) {
	restConfig, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("election: build kubernetes config: %w", err)
	}
	return kubernetes.NewForConfig(restConfig)
}

// IsLeader 返回当前实例是否为领导者.
func (k *Kubernetes) IsLeader() bool {
	k.ensureCampaign()
	return k.leader.Load()
}

// Timeout 返回选举超时时间.
func (k *Kubernetes) Timeout() time.Duration {
	return k.timeout
}

// LeaseName 返回 Lease 名称.
func (k *Kubernetes) LeaseName() string {
	return k.name
}

// Release 停止竞选，持有的 Lease 会在取消时被释放.
func (k *Kubernetes) Release() error {
	k.mu.Lock()
	cancel, done := k.cancel, k.done
	k.cancel, k.done = nil, nil
	k.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	k.leader.Store(false)
	return nil
}

func (k *Kubernetes) ensureCampaign() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	k.cancel = cancel
	k.done = make(chan struct{})
	go k.campaign(ctx, k.done)
}

// campaign 失去领导权后 Run 返回，重新创建 LeaderElector 继续竞选.
func (k *Kubernetes) campaign(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		le, err := k.newLeaderElector()
		if err != nil {
			k.opts.logger.Errorf("[Election] 创建 leader elector 失败 [lease:%s/%s] [error:%v]", k.namespace, k.name, err)
			return
		}
		le.Run(ctx)
	}
}

func (k *Kubernetes) newLeaderElector() (*leaderelection.LeaderElector, error) {
	leaseLock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      k.name,
			Namespace: k.namespace,
		},
		Client: k.client.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: k.opts.identity,
		},
	}

	return leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
		Lock:            leaseLock,
		LeaseDuration:   k.timeout,
		RenewDeadline:   k.timeout * 2 / 3,
		RetryPeriod:     k.timeout / 4,
		ReleaseOnCancel: true,
		Name:            k.name,
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: func(leadingCtx context.Context) {
				if leadingCtx.Err() != nil {
					return
				}
				k.leader.Store(true)
				k.opts.logger.Infof("[Election] 当选领导者 [lease:%s/%s] [identity:%s]", k.namespace, k.name, k.opts.identity)
			},
			OnStoppedLeading: func() {
				if k.leader.Swap(false) {
					k.opts.logger.Infof("[Election] 失去领导权 [lease:%s/%s]", k.namespace, k.name)
				}
			},
			OnNewLeader: func(identity string) {
				if identity != k.opts.identity {
					k.opts.logger.Debugf("[Election] 当前领导者 [lease:%s/%s] [identity:%s]", k.namespace, k.name, identity)
				}
			},
		},
	})
}

// leaseName 将调度键转换为合法的 DNS-1123 名称.
func leaseName(key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(key) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	name := strings.Trim(b.String(), "-.")
	if name == "" {
		name = "elected-scheduler"
	}
	if len(name) > 63 {
		name = strings.TrimRight(name[:63], "-.")
	}
	return name
}

// defaultIdentity 返回主机名作为实例标识.
func defaultIdentity() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "elected-scheduler"
	}
	return host
}
