package bootstrap

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"

	"p2pstreamd/internal/configloader"
)

// Route53Bootstrap discovers and advertises peers as SRV records in an
// AWS Route53 hosted zone, one record per node ID.
type Route53Bootstrap struct {
	client       *route53.Client
	hostedZoneID string
	domainSuffix string
	ttl          int64
}

func NewRoute53Bootstrap(ctx context.Context, cfg configloader.Route53Config) (*Route53Bootstrap, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	awsCfg, err := awsconfig.LoadDefaultConfig(dialCtx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Route53Bootstrap{
		client:       route53.NewFromConfig(awsCfg),
		hostedZoneID: cfg.HostedZoneID,
		domainSuffix: strings.TrimSuffix(cfg.DomainSuffix, "."),
		ttl:          cfg.TTL,
	}, nil
}

// Discover lists every SRV record under the configured domain suffix
// and resolves each target to host:port addresses.
func (r *Route53Bootstrap) Discover(ctx context.Context) ([]string, error) {
	var endpoints []string
	input := &route53.ListResourceRecordSetsInput{HostedZoneId: aws.String(r.hostedZoneID)}
	paginator := route53.NewListResourceRecordSetsPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list records: %w", err)
		}
		for _, rrset := range page.ResourceRecordSets {
			if rrset.Type != types.RRTypeSrv {
				continue
			}
			if !strings.HasSuffix(strings.TrimSuffix(*rrset.Name, "."), r.domainSuffix) {
				continue
			}
			for _, rr := range rrset.ResourceRecords {
				var prio, weight, port int
				var target string
				if _, err := fmt.Sscanf(*rr.Value, "%d %d %d %s", &prio, &weight, &port, &target); err != nil {
					continue
				}
				target = strings.TrimSuffix(target, ".")
				ips, err := net.LookupHost(target)
				if err != nil {
					continue
				}
				for _, ip := range ips {
					endpoints = append(endpoints, fmt.Sprintf("%s:%d", ip, port))
				}
			}
		}
	}
	return endpoints, nil
}

func (r *Route53Bootstrap) recordName(selfID string) string {
	return fmt.Sprintf("%s.%s.", selfID, r.domainSuffix)
}

// Register upserts an SRV record naming selfAddr under selfID.
func (r *Route53Bootstrap) Register(ctx context.Context, selfID, selfAddr string) error {
	host, port, err := net.SplitHostPort(selfAddr)
	if err != nil {
		return fmt.Errorf("split address %q: %w", selfAddr, err)
	}
	_, err = r.client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(r.hostedZoneID),
		ChangeBatch: &types.ChangeBatch{
			Changes: []types.Change{{
				Action: types.ChangeActionUpsert,
				ResourceRecordSet: &types.ResourceRecordSet{
					Name: aws.String(r.recordName(selfID)),
					Type: types.RRTypeSrv,
					TTL:  aws.Int64(r.ttl),
					ResourceRecords: []types.ResourceRecord{
						{Value: aws.String(fmt.Sprintf("0 0 %s %s.", port, host))},
					},
				},
			}},
		},
	})
	return err
}

// Deregister removes the SRV record created by Register.
func (r *Route53Bootstrap) Deregister(ctx context.Context, selfID, selfAddr string) error {
	host, port, err := net.SplitHostPort(selfAddr)
	if err != nil {
		return fmt.Errorf("split address %q: %w", selfAddr, err)
	}
	_, err = r.client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(r.hostedZoneID),
		ChangeBatch: &types.ChangeBatch{
			Changes: []types.Change{{
				Action: types.ChangeActionDelete,
				ResourceRecordSet: &types.ResourceRecordSet{
					Name: aws.String(r.recordName(selfID)),
					Type: types.RRTypeSrv,
					TTL:  aws.Int64(r.ttl),
					ResourceRecords: []types.ResourceRecord{
						{Value: aws.String(fmt.Sprintf("0 0 %s %s.", port, host))},
					},
				},
			}},
		},
	})
	return err
}
