/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package router

import (
	"testing"

	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v2"
)

func TestConfig(t *testing.T) {
	cfg := Config{}

	err := yaml.Unmarshal([]byte("{hosts: [jackal.im, conference.jackal.im]}"), &cfg)
	require.Nil(t, err)
	require.Equal(t, []string{"jackal.im", "conference.jackal.im"}, cfg.Hosts)

	err = yaml.Unmarshal([]byte("{hosts: [jackal.im, jackal.im]}"), &cfg)
	require.NotNil(t, err)

	err = yaml.Unmarshal([]byte("{hosts: ['']}"), &cfg)
	require.NotNil(t, err)

	err = yaml.Unmarshal([]byte("hosts: jackal.im"), &cfg)
	require.NotNil(t, err)
}
