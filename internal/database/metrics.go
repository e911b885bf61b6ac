package database

import (
	"database/sql"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

func SaveMetric(metricName, labelKey, labelValue string, value float64) error {
	query := `
	INSERT OR REPLACE INTO metrics (metric_name, label_key, label_value, metric_value)
	VALUES (?, ?, ?, ?);`
	_, err := DB.Exec(query, metricName, labelKey, labelValue, value)
	return errors.Wrapf(err, "failed to save metric %s", metricName)
}

func GetMetric(metricName string) (float64, error) {
	var value float64
	query := `
	SELECT metric_value
	FROM metrics
	WHERE metric_name = ? AND label_key = '' AND label_value = '';`
	err := DB.QueryRow(query, metricName).Scan(&value)
	if err == sql.ErrNoRows {
		log.Debugf("Metric %s not found in the database, defaulting to 0", metricName)
		return 0, nil
	} else if err != nil {
		return 0, errors.Wrapf(err, "failed to get metric %s", metricName)
	}
	return value, nil
}

// GetMetricsWithLabels fetches all labeled series stored for a metric,
// keyed by label value.
func GetMetricsWithLabels(metricName string) (map[string]float64, error) {
	query := `
	SELECT label_value, metric_value
	FROM metrics
	WHERE metric_name = ? AND label_value != '';`

	rows, err := DB.Query(query, metricName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query labeled metric %s", metricName)
	}
	defer rows.Close()

	metrics := make(map[string]float64)
	for rows.Next() {
		var labelValue string
		var value float64
		if err := rows.Scan(&labelValue, &value); err != nil {
			return nil, errors.Wrap(err, "failed to scan metric row")
		}
		metrics[labelValue] = value
	}
	return metrics, rows.Err()
}
