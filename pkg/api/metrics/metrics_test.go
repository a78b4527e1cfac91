package metrics_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/nicholas-fedor/gitwatch/pkg/api"
	metricsAPI "github.com/nicholas-fedor/gitwatch/pkg/api/metrics"
	"github.com/nicholas-fedor/gitwatch/pkg/metrics"
	"github.com/nicholas-fedor/gitwatch/pkg/types"
)

const (
	token = "123123123"
)

func TestMetrics(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Metrics Suite")
}

func getWithToken(baseURL string) (map[string]string, error) {
	req, _ := http.NewRequestWithContext(
		context.Background(),
		http.MethodGet,
		baseURL+metricsAPI.Path,
		nil,
	)
	req.Header.Add("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	metricMap := map[string]string{}

	for line := range strings.SplitSeq(string(body), "\n") {
		if len(line) < 1 || line[0] == '#' {
			continue
		}

		parts := strings.Split(line, " ")
		metricMap[parts[0]] = parts[1]
	}

	return metricMap, nil
}

var _ = ginkgo.Describe("the metrics API", func() {
	var (
		server  *ghttp.Server
		httpAPI *api.API
		m       *metricsAPI.Handler
	)

	ginkgo.BeforeEach(func() {
		httpAPI = api.New(token, ":8080")
		m = metricsAPI.New()
		server = ghttp.NewServer()
		server.RouteToHandler(http.MethodGet, metricsAPI.Path, ghttp.CombineHandlers(
			ghttp.VerifyRequest(http.MethodGet, metricsAPI.Path),
			httpAPI.RequireToken(m.Handle.ServeHTTP),
		))
	})

	ginkgo.AfterEach(func() {
		server.Close()
	})

	tryGetMetrics := func() map[string]string {
		m, err := getWithToken(server.URL())
		if err != nil {
			ginkgo.Fail("failed to get metrics: " + err.Error())
		}

		return m
	}

	ginkgo.It("should serve observation metrics", func() {
		gomega.Expect(m.Path).To(gomega.Equal("/v1/metrics"))
		gomega.Expect(tryGetMetrics()).To(gomega.SatisfyAll(
			gomega.HaveKeyWithValue("gitwatch_observations_total", "0"),
			gomega.HaveKeyWithValue("gitwatch_branches_observed", "0"),
		))

		state := types.RepoState{
			ObservedAt: time.Unix(1700000000, 0),
			BranchHeads: types.BranchHeads{
				"main": {ID: types.CommitID("a")},
				"dev":  {ID: types.CommitID("b")},
				"docs": {ID: types.CommitID("c")},
			},
		}

		metrics.Default().RegisterObservation(metrics.NewMetric(state, 2, 1))
		gomega.Eventually(metrics.Default().QueueIsEmpty).Should(gomega.BeTrue())

		gomega.Eventually(tryGetMetrics).Should(gomega.SatisfyAll(
			gomega.HaveKeyWithValue("gitwatch_observations_total", "1"),
			gomega.HaveKeyWithValue("gitwatch_branches_observed", "3"),
			gomega.HaveKeyWithValue("gitwatch_branches_changed", "2"),
			gomega.HaveKeyWithValue("gitwatch_partial_diffs", "1"),
			gomega.HaveKeyWithValue("gitwatch_branch_changes_total", "2"),
			gomega.HaveKeyWithValue("gitwatch_last_observation_timestamp_seconds", "1.7e+09"),
		))

		for range 2 {
			metrics.Default().RegisterObservation(metrics.NewFailedMetric())
		}

		gomega.Eventually(metrics.Default().QueueIsEmpty).Should(gomega.BeTrue())

		gomega.Eventually(tryGetMetrics).Should(gomega.SatisfyAll(
			gomega.HaveKeyWithValue("gitwatch_observations_total", "3"),
			gomega.HaveKeyWithValue("gitwatch_observations_failed_total", "2"),
			gomega.HaveKeyWithValue("gitwatch_branches_observed", "3"),
		))
	})

	ginkgo.It("should reject requests without a token", func() {
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL()+metricsAPI.Path, nil)

		resp, err := http.DefaultClient.Do(req)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		defer resp.Body.Close()

		gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusUnauthorized))
	})
})
