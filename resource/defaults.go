package resource

// Defaults carries the per-kind fallback values the validator fills in for
// omitted optional fields. Zero fields fall back to the built-in table, so a
// service config only needs to name what it overrides.
type Defaults struct {
	EC2  EC2Defaults       `json:"ec2" yaml:"ec2"`
	S3   S3Defaults        `json:"s3" yaml:"s3"`
	RDS  RDSDefaults       `json:"rds" yaml:"rds"`
	Tags map[string]string `json:"tags" yaml:"tags"`
}

// EC2Defaults are the fallback values for ec2 specs.
type EC2Defaults struct {
	InstanceName string   `json:"instance_name" yaml:"instance_name"`
	InstanceType string   `json:"instance_type" yaml:"instance_type"`
	AMI          string   `json:"ami" yaml:"ami"`
	Region       string   `json:"region" yaml:"region"`
	SSHCIDRs     []string `json:"allowed_ssh_cidrs" yaml:"allowed_ssh_cidrs"`
}

// S3Defaults are the fallback values for s3 specs. Encryption is on unless
// explicitly disabled, hence the inverted field.
type S3Defaults struct {
	Region            string `json:"region" yaml:"region"`
	Versioning        bool   `json:"versioning" yaml:"versioning"`
	DisableEncryption bool   `json:"disable_encryption" yaml:"disable_encryption"`
}

// RDSDefaults are the fallback values for rds specs.
type RDSDefaults struct {
	Engine         string `json:"engine" yaml:"engine"`
	InstanceClass  string `json:"instance_class" yaml:"instance_class"`
	Region         string `json:"region" yaml:"region"`
	MasterUsername string `json:"master_username" yaml:"master_username"`
	MasterPassword string `json:"master_password" yaml:"master_password"`
}

// DefaultTable returns the built-in default values.
func DefaultTable() Defaults {
	return Defaults{
		EC2: EC2Defaults{
			InstanceName: "example",
			InstanceType: "t2.micro",
			AMI:          "ami-03f4878755434977f",
			Region:       "ap-south-1",
			SSHCIDRs:     []string{"10.0.0.0/8"},
		},
		S3: S3Defaults{
			Region: "ap-south-1",
		},
		RDS: RDSDefaults{
			Engine:         "mysql",
			InstanceClass:  "db.t3.micro",
			Region:         "ap-south-1",
			MasterUsername: "admin",
			MasterPassword: "changeme123!",
		},
		Tags: map[string]string{
			"Environment": "development",
			"ManagedBy":   "terraform",
		},
	}
}

// merged returns d with zero fields replaced from the built-in table.
func (d Defaults) merged() Defaults {
	base := DefaultTable()
	if d.EC2.InstanceName == "" {
		d.EC2.InstanceName = base.EC2.InstanceName
	}
	if d.EC2.InstanceType == "" {
		d.EC2.InstanceType = base.EC2.InstanceType
	}
	if d.EC2.AMI == "" {
		d.EC2.AMI = base.EC2.AMI
	}
	if d.EC2.Region == "" {
		d.EC2.Region = base.EC2.Region
	}
	if len(d.EC2.SSHCIDRs) == 0 {
		d.EC2.SSHCIDRs = append([]string(nil), base.EC2.SSHCIDRs...)
	}
	if d.S3.Region == "" {
		d.S3.Region = base.S3.Region
	}
	if d.RDS.Engine == "" {
		d.RDS.Engine = base.RDS.Engine
	}
	if d.RDS.InstanceClass == "" {
		d.RDS.InstanceClass = base.RDS.InstanceClass
	}
	if d.RDS.Region == "" {
		d.RDS.Region = base.RDS.Region
	}
	if d.RDS.MasterUsername == "" {
		d.RDS.MasterUsername = base.RDS.MasterUsername
	}
	if d.RDS.MasterPassword == "" {
		d.RDS.MasterPassword = base.RDS.MasterPassword
	}
	if d.Tags == nil {
		d.Tags = map[string]string{}
	}
	for k, v := range base.Tags {
		if _, ok := d.Tags[k]; !ok {
			d.Tags[k] = v
		}
	}
	return d
}
