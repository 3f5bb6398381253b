package discovery

import (
	"fmt"
	"log"
	"strconv"

	"test-service/internal/config"

	"github.com/hashicorp/consul/api"
)

type ServiceRegistry struct {
	client *api.Client
	config *config.Config
}

// NewServiceRegistry returns a nil-safe registry: when no Consul address is
// configured the registry is disabled and every method is a no-op.
func NewServiceRegistry(config *config.Config) (*ServiceRegistry, error) {
	if config.Consul.ConsulAddress == "" {
		log.Println("Warning: Consul address is empty, service discovery is disabled")
		return &ServiceRegistry{config: config}, nil
	}

	consulConfig := api.DefaultConfig()
	consulConfig.Address = config.Consul.ConsulAddress

	client, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Consul client: %v", err)
	}

	return &ServiceRegistry{
		client: client,
		config: config,
	}, nil
}

func (sr *ServiceRegistry) Register() error {
	if sr.client == nil {
		return nil
	}

	httpPort, _ := strconv.Atoi(sr.config.Server.Port)

	httpRegistration := &api.AgentServiceRegistration{
		ID:      sr.config.Server.ServiceID + "-http",
		Name:    sr.config.Server.ServiceName,
		Port:    httpPort,
		Address: sr.config.Server.ServiceAddress,
		Check: &api.AgentServiceCheck{
			HTTP:     fmt.Sprintf("http://%s:%s/health", sr.config.Server.ServiceAddress, sr.config.Server.Port),
			Interval: "10s",
			Timeout:  "5s",
		},
		Tags: []string{"test", "attempts", "http"},
		Meta: map[string]string{
			"protocol": "http",
		},
	}

	if err := sr.client.Agent().ServiceRegister(httpRegistration); err != nil {
		return fmt.Errorf("failed to register HTTP service with Consul: %v", err)
	}

	log.Println("Successfully registered HTTP service with Consul")
	return nil
}

func (sr *ServiceRegistry) Deregister() error {
	if sr.client == nil {
		return nil
	}

	if err := sr.client.Agent().ServiceDeregister(sr.config.Server.ServiceID + "-http"); err != nil {
		log.Printf("Error deregistering HTTP service: %v", err)
	}
	return nil
}

// FindService looks up healthy instances of a service by name.
func (sr *ServiceRegistry) FindService(serviceName string) ([]*api.ServiceEntry, error) {
	if sr.client == nil {
		return nil, fmt.Errorf("service discovery is disabled")
	}

	services, meta, err := sr.client.Health().Service(serviceName, "", true, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to find service %s: %v", serviceName, err)
	}

	log.Printf("Found %d instances of service %s (ConsulIndex: %d)", len(services), serviceName, meta.LastIndex)

	if len(services) == 0 {
		return nil, fmt.Errorf("no healthy instances of service %s found", serviceName)
	}

	return services, nil
}
