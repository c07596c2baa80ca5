package render

// Template bodies for each resource kind. Every configuration is
// self-contained: one provider block plus the resources, variables, and
// outputs the kind needs. Substitutions are plain field lookups so the
// rendered bytes depend only on the spec.

const ec2Template = `provider "aws" {
  region = "{{.Region}}"
}

resource "aws_vpc" "default" {
  cidr_block           = "10.0.0.0/16"
  enable_dns_hostnames = true
  enable_dns_support   = true

  {{tags "DefaultVPC" .Tags}}
}

resource "aws_subnet" "default" {
  vpc_id                  = aws_vpc.default.id
  cidr_block              = "10.0.1.0/24"
  availability_zone       = "{{.Region}}a"
  map_public_ip_on_launch = true

  {{tags "DefaultSubnet" .Tags}}
}

resource "aws_internet_gateway" "default" {
  vpc_id = aws_vpc.default.id

  {{tags "DefaultIGW" .Tags}}
}

resource "aws_route_table" "default" {
  vpc_id = aws_vpc.default.id

  route {
    cidr_block = "0.0.0.0/0"
    gateway_id = aws_internet_gateway.default.id
  }

  {{tags "DefaultRouteTable" .Tags}}
}

resource "aws_route_table_association" "default" {
  subnet_id      = aws_subnet.default.id
  route_table_id = aws_route_table.default.id
}

resource "aws_security_group" "default" {
  name        = "default_sg"
  description = "Default security group"
  vpc_id      = aws_vpc.default.id

  ingress {
    from_port   = 22
    to_port     = 22
    protocol    = "tcp"
    cidr_blocks = var.allowed_ssh_cidrs
    description = "SSH access"
  }

  ingress {
    from_port   = 80
    to_port     = 80
    protocol    = "tcp"
    cidr_blocks = ["0.0.0.0/0"]
    description = "HTTP access"
  }

  ingress {
    from_port   = 443
    to_port     = 443
    protocol    = "tcp"
    cidr_blocks = ["0.0.0.0/0"]
    description = "HTTPS access"
  }

  egress {
    from_port   = 0
    to_port     = 0
    protocol    = "-1"
    cidr_blocks = ["0.0.0.0/0"]
    description = "All outbound traffic"
  }

  {{tags "DefaultSG" .Tags}}
}

resource "aws_instance" "{{.InstanceLabel}}" {
  ami           = "{{.AMI}}"
  instance_type = "{{.InstanceType}}"
  subnet_id     = aws_subnet.default.id

  vpc_security_group_ids = [aws_security_group.default.id]

  {{tags .InstanceName .Tags}}
}

variable "allowed_ssh_cidrs" {
  description = "CIDR blocks allowed for SSH access"
  type        = list(string)
  default     = {{hclList .SSHCIDRs}}
}

output "vpc_id" {
  description = "ID of the VPC"
  value       = aws_vpc.default.id
}

output "subnet_id" {
  description = "ID of the subnet"
  value       = aws_subnet.default.id
}

output "security_group_id" {
  description = "ID of the security group"
  value       = aws_security_group.default.id
}

output "instance_id" {
  description = "ID of the EC2 instance"
  value       = aws_instance.{{.InstanceLabel}}.id
}
`

const s3Template = `provider "aws" {
  region = "{{.Region}}"
}

resource "aws_s3_bucket" "{{.Label}}" {
  bucket = "{{.BucketName}}"

  {{tags .BucketName .Tags}}
}

resource "aws_s3_bucket_versioning" "{{.Label}}_versioning" {
  bucket = aws_s3_bucket.{{.Label}}.id

  versioning_configuration {
    status = "{{.VersioningStatus}}"
  }
}
{{if .EncryptionEnabled}}
resource "aws_s3_bucket_server_side_encryption_configuration" "{{.Label}}_encryption" {
  bucket = aws_s3_bucket.{{.Label}}.id

  rule {
    apply_server_side_encryption_by_default {
      sse_algorithm = "AES256"
    }
  }
}
{{end}}
output "bucket_name" {
  description = "Name of the S3 bucket"
  value       = aws_s3_bucket.{{.Label}}.bucket
}

output "bucket_arn" {
  description = "ARN of the S3 bucket"
  value       = aws_s3_bucket.{{.Label}}.arn
}
`

const rdsTemplate = `provider "aws" {
  region = "{{.Region}}"
}

resource "aws_db_instance" "{{.Label}}" {
  identifier     = "{{.DatabaseName}}"
  engine         = "{{.Engine}}"
  engine_version = "{{.EngineVersion}}"
  instance_class = "{{.InstanceClass}}"

  allocated_storage = 20
  storage_type      = "gp2"

  db_name  = "{{.DBName}}"
  username = "{{.MasterUsername}}"
  password = "{{.MasterPassword}}"

  vpc_security_group_ids = [aws_security_group.rds.id]
  db_subnet_group_name   = aws_db_subnet_group.default.name

  backup_retention_period = 7
  backup_window           = "07:00-09:00"
  maintenance_window      = "sun:09:00-sun:10:00"

  skip_final_snapshot = true
  deletion_protection = false

  {{tags .DatabaseName .Tags}}
}

resource "aws_db_subnet_group" "default" {
  name       = "{{.DatabaseName}}-subnet-group"
  subnet_ids = [aws_subnet.private_1.id, aws_subnet.private_2.id]

  {{tags (printf "%s-subnet-group" .DatabaseName)}}
}

resource "aws_security_group" "rds" {
  name        = "{{.DatabaseName}}-rds-sg"
  description = "Security group for RDS database"
  vpc_id      = aws_vpc.main.id

  ingress {
    from_port   = {{.Port}}
    to_port     = {{.Port}}
    protocol    = "tcp"
    cidr_blocks = ["10.0.0.0/16"]
    description = "{{.EngineUpper}} access"
  }

  {{tags (printf "%s-rds-sg" .DatabaseName)}}
}

resource "aws_vpc" "main" {
  cidr_block           = "10.0.0.0/16"
  enable_dns_hostnames = true
  enable_dns_support   = true

  {{tags (printf "%s-vpc" .DatabaseName)}}
}

resource "aws_subnet" "private_1" {
  vpc_id            = aws_vpc.main.id
  cidr_block        = "10.0.1.0/24"
  availability_zone = "{{.Region}}a"

  {{tags (printf "%s-private-1" .DatabaseName)}}
}

resource "aws_subnet" "private_2" {
  vpc_id            = aws_vpc.main.id
  cidr_block        = "10.0.2.0/24"
  availability_zone = "{{.Region}}b"

  {{tags (printf "%s-private-2" .DatabaseName)}}
}

output "rds_endpoint" {
  description = "RDS instance endpoint"
  value       = aws_db_instance.{{.Label}}.endpoint
}

output "rds_port" {
  description = "RDS instance port"
  value       = aws_db_instance.{{.Label}}.port
}
`

const customTemplate = `provider "aws" {
  region = "{{.Region}}"
}

# Requested infrastructure:
{{range .RequestLines}}#   {{.}}
{{end}}`
