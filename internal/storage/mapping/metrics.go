package mapping

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports manager statistics to prometheus. Reading it does not
// reset the map count.
type Collector struct {
	m *Manager

	mappedBytes  *prometheus.Desc
	mappingLimit *prometheus.Desc
	mapCalls     *prometheus.Desc
	evictions    *prometheus.Desc
	flushes      *prometheus.Desc
	pages        *prometheus.Desc
	mappedPages  *prometheus.Desc
	pagesInUse   *prometheus.Desc
	unusedPages  *prometheus.Desc
	dirtyLists   *prometheus.Desc
}

func NewCollector(m *Manager, namespace string) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "mapping", name), help, labels, nil)
	}
	return &Collector{
		m:            m,
		mappedBytes:  desc("mapped_bytes", "Bytes currently mapped."),
		mappingLimit: desc("limit_bytes", "Soft limit on mapped bytes."),
		mapCalls:     desc("map_calls_total", "Map calls since the last map count reset."),
		evictions:    desc("evictions_total", "Pages unmapped to stay under the limit."),
		flushes:      desc("flushes_total", "Page flushes to backing storage."),
		pages:        desc("pages", "Registered pages."),
		mappedPages:  desc("mapped_pages", "Registered pages that are mapped."),
		pagesInUse:   desc("pages_in_use", "Pages with a positive use count."),
		unusedPages:  desc("unused_pages", "Unused pages per priority level.", "priority"),
		dirtyLists:   desc("dirty_lists", "Live dirty lists."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.mappedBytes
	ch <- c.mappingLimit
	ch <- c.mapCalls
	ch <- c.evictions
	ch <- c.flushes
	ch <- c.pages
	ch <- c.mappedPages
	ch <- c.pagesInUse
	ch <- c.unusedPages
	ch <- c.dirtyLists
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.m.Stats()

	ch <- prometheus.MustNewConstMetric(c.mappedBytes, prometheus.GaugeValue, float64(s.MappedBytes))
	ch <- prometheus.MustNewConstMetric(c.mappingLimit, prometheus.GaugeValue, float64(s.MappingLimit))
	ch <- prometheus.MustNewConstMetric(c.mapCalls, prometheus.CounterValue, float64(s.MapCount))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions))
	ch <- prometheus.MustNewConstMetric(c.flushes, prometheus.CounterValue, float64(s.Flushes))
	ch <- prometheus.MustNewConstMetric(c.pages, prometheus.GaugeValue, float64(s.Pages))
	ch <- prometheus.MustNewConstMetric(c.mappedPages, prometheus.GaugeValue, float64(s.MappedPages))
	ch <- prometheus.MustNewConstMetric(c.pagesInUse, prometheus.GaugeValue, float64(s.PagesInUse))
	for p, n := range s.Unused {
		ch <- prometheus.MustNewConstMetric(c.unusedPages, prometheus.GaugeValue, float64(n), strconv.Itoa(p))
	}
	ch <- prometheus.MustNewConstMetric(c.dirtyLists, prometheus.GaugeValue, float64(s.DirtyLists))
}
